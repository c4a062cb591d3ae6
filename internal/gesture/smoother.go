package gesture

// Smoother keeps one sliding window per axis and returns the mean of the
// whole window after each push. Windows start zero-filled, so the first
// Window-1 outputs are pulled toward zero. Enrollment and attempt go
// through the same filter, which keeps that bias comparable.
type Smoother struct {
	windows [][]float64
	size    int
}

// NewSmoother creates a zero-filled smoother for the layout.
func NewSmoother(l Layout) *Smoother {
	w := make([][]float64, l.Axes)
	for a := range w {
		w[a] = make([]float64, l.Window)
	}
	return &Smoother{windows: w, size: l.Window}
}

// Push drops the oldest value of the axis window, appends raw and returns
// the window mean.
func (s *Smoother) Push(axis Axis, raw float64) float64 {
	w := s.windows[axis]
	copy(w, w[1:])
	w[s.size-1] = raw

	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum / float64(s.size)
}

// Reset zeroes every window.
func (s *Smoother) Reset() {
	for _, w := range s.windows {
		clear(w)
	}
}
