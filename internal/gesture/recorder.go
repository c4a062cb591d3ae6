package gesture

// SensorSource provides one raw acceleration reading per axis per tick.
type SensorSource interface {
	ReadAxis(axis Axis) float64
}

// Recorder fills one Series from a SensorSource through its own Smoother.
// A Recorder lives for exactly one capture; pacing between samples is the
// caller's job and must match between enrollment and attempts.
type Recorder struct {
	layout   Layout
	sensor   SensorSource
	smoother *Smoother
	series   Series
	count    int
}

// NewRecorder prepares an empty capture.
func NewRecorder(l Layout, sensor SensorSource) *Recorder {
	return &Recorder{
		layout:   l,
		sensor:   sensor,
		smoother: NewSmoother(l),
		series:   NewSeries(l),
	}
}

// Sample reads every axis once and stores the smoothed values at the next
// sample index. It reports false once the sample budget is used up.
func (r *Recorder) Sample() bool {
	if r.count >= r.layout.Samples {
		return false
	}
	for a := 0; a < r.layout.Axes; a++ {
		axis := Axis(a)
		r.series[a][r.count] = float32(r.smoother.Push(axis, r.sensor.ReadAxis(axis)))
	}
	r.count++
	return true
}

// CaptureSequence takes n samples back to back (bounded by the layout) and
// returns the series. Samples never reached stay zero.
func (r *Recorder) CaptureSequence(n int) Series {
	for i := 0; i < n; i++ {
		if !r.Sample() {
			break
		}
	}
	return r.series
}

// Series returns the buffer being filled. It is owned by the Recorder
// until the capture ends.
func (r *Recorder) Series() Series { return r.series }

// Count is the number of samples taken so far.
func (r *Recorder) Count() int { return r.count }

// Full reports whether the sample budget has been reached.
func (r *Recorder) Full() bool { return r.count >= r.layout.Samples }
