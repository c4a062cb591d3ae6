package gesture

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wave returns a non-constant series with a different shape per axis.
func wave(l Layout) Series {
	s := NewSeries(l)
	for a := range s {
		for i := range s[a] {
			s[a][i] = float32(math.Sin(float64(i)*0.3+float64(a)) * float64(a+1))
		}
	}
	return s
}

func negate(s Series) Series {
	out := s.Clone()
	for a := range out {
		for i := range out[a] {
			out[a][i] = -out[a][i]
		}
	}
	return out
}

func TestCorrelateIdentical(t *testing.T) {
	for _, norm := range []Normalization{NormalizeFull, NormalizeTrimmed} {
		t.Run(norm.String(), func(t *testing.T) {
			m := NewMatcher(DefaultLayout, norm, DefaultThreshold)
			s := wave(DefaultLayout)

			c := m.Correlate(s, s.Clone())
			require.Len(t, c, 3)
			for a, ac := range c {
				assert.True(t, ac.Defined, "axis %s", Axis(a))
				assert.InDelta(t, 1.0, ac.R, 1e-6, "axis %s", Axis(a))
			}
			assert.Equal(t, Matched, m.Decide(c))
		})
	}
}

func TestCorrelateNegated(t *testing.T) {
	for _, norm := range []Normalization{NormalizeFull, NormalizeTrimmed} {
		t.Run(norm.String(), func(t *testing.T) {
			m := NewMatcher(DefaultLayout, norm, DefaultThreshold)
			s := wave(DefaultLayout)

			c := m.Correlate(s, negate(s))
			for a, ac := range c {
				assert.True(t, ac.Defined)
				assert.InDelta(t, -1.0, ac.R, 1e-6, "axis %s", Axis(a))
			}
			assert.Equal(t, NotMatched, m.Decide(c))
		})
	}
}

func TestCorrelateZeroVariance(t *testing.T) {
	m := NewMatcher(DefaultLayout, NormalizeFull, DefaultThreshold)
	s := wave(DefaultLayout)

	tests := []struct {
		name     string
		template Series
		attempt  Series
	}{
		{
			name:     "flat template axis",
			template: withAxis(s, Y, 3.0),
			attempt:  s,
		},
		{
			name:     "flat attempt axis",
			template: s,
			attempt:  withAxis(s, Z, -1.5),
		},
		{
			name:     "all zero attempt",
			template: s,
			attempt:  NewSeries(DefaultLayout),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := m.Correlate(tt.template, tt.attempt)
			for _, ac := range c {
				assert.False(t, math.IsNaN(ac.R))
				assert.False(t, math.IsInf(ac.R, 0))
			}
			assert.Equal(t, NotMatched, m.Decide(c))
		})
	}
}

func TestCorrelateIgnoresTrimmedEnds(t *testing.T) {
	m := NewMatcher(DefaultLayout, NormalizeTrimmed, DefaultThreshold)
	s := wave(DefaultLayout)
	attempt := s.Clone()
	for a := range attempt {
		for i := 0; i < DefaultLayout.Trim; i++ {
			attempt[a][i] = 1000
			attempt[a][DefaultLayout.Samples-1-i] = -1000
		}
	}

	c := m.Correlate(s, attempt)
	for _, ac := range c {
		assert.InDelta(t, 1.0, ac.R, 1e-6)
	}
}

func TestFullNormalizationDiffersFromTrimmed(t *testing.T) {
	l := DefaultLayout
	template := NewSeries(l)
	attempt := NewSeries(l)
	for a := range template {
		for i := range template[a] {
			template[a][i] = float32(i)
			attempt[a][i] = float32((i * 7) % 11)
		}
	}

	full := NewMatcher(l, NormalizeFull, DefaultThreshold).Correlate(template, attempt)
	trimmed := NewMatcher(l, NormalizeTrimmed, DefaultThreshold).Correlate(template, attempt)
	assert.NotEqual(t, full[X].R, trimmed[X].R)
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		c    CorrelationVector
		want Verdict
	}{
		{"all above", CorrelationVector{{0.9, true}, {0.5, true}, {0.31, true}}, Matched},
		{"one at threshold", CorrelationVector{{0.9, true}, {0.3, true}, {0.9, true}}, NotMatched},
		{"one below", CorrelationVector{{0.9, true}, {0.9, true}, {0.1, true}}, NotMatched},
		{"one undefined", CorrelationVector{{0.9, true}, {0.9, true}, {0, false}}, NotMatched},
		{"NaN never matches", CorrelationVector{{math.NaN(), true}, {0.9, true}, {0.9, true}}, NotMatched},
		{"empty", CorrelationVector{}, NotMatched},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.c, DefaultThreshold))
		})
	}
}

func TestParseNormalization(t *testing.T) {
	n, err := ParseNormalization("trimmed")
	require.NoError(t, err)
	assert.Equal(t, NormalizeTrimmed, n)

	n, err = ParseNormalization("")
	require.NoError(t, err)
	assert.Equal(t, NormalizeFull, n)

	_, err = ParseNormalization("median")
	assert.Error(t, err)
}

func withAxis(s Series, axis Axis, v float32) Series {
	out := s.Clone()
	for i := range out[axis] {
		out[axis][i] = v
	}
	return out
}
