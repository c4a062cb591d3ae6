package gesture

import (
	"fmt"
	"math"
)

// DefaultThreshold is the correlation every axis must exceed to match.
const DefaultThreshold = 0.3

// Normalization selects the n used in the correlation sums.
type Normalization int

const (
	// NormalizeFull divides by the full sample count even though the sums
	// only cover the trimmed range. Stored templates were tuned against
	// this behaviour, so it stays the default.
	NormalizeFull Normalization = iota
	// NormalizeTrimmed divides by the number of samples actually summed,
	// which gives textbook Pearson r.
	NormalizeTrimmed
)

// ParseNormalization maps a config value to a Normalization.
func ParseNormalization(s string) (Normalization, error) {
	switch s {
	case "", "full", "legacy":
		return NormalizeFull, nil
	case "trimmed":
		return NormalizeTrimmed, nil
	default:
		return 0, fmt.Errorf("unknown correlation normalization %q (want full or trimmed)", s)
	}
}

func (n Normalization) String() string {
	if n == NormalizeTrimmed {
		return "trimmed"
	}
	return "full"
}

// AxisCorrelation is the Pearson coefficient of one axis. Defined is false
// when either series is flat over the compared range; R is then zero and
// the axis never counts as a match.
type AxisCorrelation struct {
	R       float64 `json:"r"`
	Defined bool    `json:"defined"`
}

// CorrelationVector holds one coefficient per axis.
type CorrelationVector []AxisCorrelation

// Verdict is the outcome of comparing an attempt with the template.
type Verdict int

const (
	NotMatched Verdict = iota
	Matched
)

func (v Verdict) String() string {
	if v == Matched {
		return "matched"
	}
	return "not_matched"
}

// Matcher compares two Series axis by axis.
type Matcher struct {
	layout    Layout
	norm      Normalization
	threshold float64
}

// NewMatcher builds a matcher for the layout.
func NewMatcher(l Layout, norm Normalization, threshold float64) *Matcher {
	return &Matcher{layout: l, norm: norm, threshold: threshold}
}

// Threshold returns the configured decision threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Correlate computes per-axis Pearson r over [Trim, Samples-Trim).
func (m *Matcher) Correlate(template, attempt Series) CorrelationVector {
	out := make(CorrelationVector, m.layout.Axes)
	lo, hi := m.layout.Trim, m.layout.Samples-m.layout.Trim

	n := float64(m.layout.Samples)
	if m.norm == NormalizeTrimmed {
		n = float64(hi - lo)
	}

	for a := 0; a < m.layout.Axes; a++ {
		xs, ys := template[a][lo:hi], attempt[a][lo:hi]
		if flat(xs) || flat(ys) {
			continue
		}

		var sx, sy, sxx, syy, sxy float64
		for i := range xs {
			x, y := float64(xs[i]), float64(ys[i])
			sx += x
			sy += y
			sxx += x * x
			syy += y * y
			sxy += x * y
		}

		num := sxy - sx*sy/n
		den := math.Sqrt((sxx - sx*sx/n) * (syy - sy*sy/n))
		if den <= 0 || math.IsNaN(den) || math.IsInf(den, 0) {
			continue
		}
		out[a] = AxisCorrelation{R: num / den, Defined: true}
	}
	return out
}

// Decide applies the matcher's threshold.
func (m *Matcher) Decide(c CorrelationVector) Verdict {
	return Decide(c, m.threshold)
}

// Decide reports Matched only when every axis is defined and strictly
// above threshold.
func Decide(c CorrelationVector, threshold float64) Verdict {
	if len(c) == 0 {
		return NotMatched
	}
	for _, ac := range c {
		if !ac.Defined || !(ac.R > threshold) {
			return NotMatched
		}
	}
	return Matched
}

// flat reports whether every value in xs is equal.
func flat(xs []float32) bool {
	for _, v := range xs[1:] {
		if v != xs[0] {
			return false
		}
	}
	return true
}
