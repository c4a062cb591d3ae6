package store

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gesture_lock/internal/gesture"
)

func sampleSeries(l gesture.Layout) gesture.Series {
	s := gesture.NewSeries(l)
	for a := range s {
		for i := range s[a] {
			s[a][i] = float32(math.Sin(float64(i)/3)*float64(a+1)) + float32(a)*0.125
		}
	}
	return s
}

func TestRoundTrip(t *testing.T) {
	l := gesture.DefaultLayout
	regions := map[string]Region{
		"memory": NewMemoryRegion(l.RegionSize()),
		"file":   NewFileRegion(filepath.Join(t.TempDir(), "gesture.bin"), l.RegionSize()),
	}
	for name, region := range regions {
		t.Run(name, func(t *testing.T) {
			gs, err := NewGestureStore(l, region)
			require.NoError(t, err)

			want := sampleSeries(l)
			require.NoError(t, gs.Save(want))

			got, err := gs.Load()
			require.NoError(t, err)
			if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-7)); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLayoutOnDisk(t *testing.T) {
	l := gesture.DefaultLayout
	path := filepath.Join(t.TempDir(), "gesture.bin")
	gs, err := NewGestureStore(l, NewFileRegion(path, l.RegionSize()))
	require.NoError(t, err)

	s := gesture.NewSeries(l)
	s[gesture.X][0] = 1.5
	s[gesture.X][1] = 2.5
	s[gesture.Y][0] = -3
	s[gesture.Z][39] = 7
	require.NoError(t, gs.Save(s))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, raw, 480)

	at := func(axis, sample int) float32 {
		off := (axis*l.Samples + sample) * 4
		return math.Float32frombits(binary.NativeEndian.Uint32(raw[off:]))
	}
	assert.Equal(t, float32(1.5), at(0, 0))
	assert.Equal(t, float32(2.5), at(0, 1))
	assert.Equal(t, float32(-3), at(1, 0))
	assert.Equal(t, float32(7), at(2, 39))
	assert.Equal(t, float32(0), at(1, 1))
}

func TestLoadUnwrittenRegionIsZero(t *testing.T) {
	l := gesture.DefaultLayout
	gs, err := NewGestureStore(l, NewFileRegion(filepath.Join(t.TempDir(), "missing.bin"), l.RegionSize()))
	require.NoError(t, err)

	got, err := gs.Load()
	require.NoError(t, err)
	assert.Equal(t, gesture.NewSeries(l), got)
}

func TestSaveOverwrites(t *testing.T) {
	l := gesture.DefaultLayout
	gs, err := NewGestureStore(l, NewMemoryRegion(l.RegionSize()))
	require.NoError(t, err)

	require.NoError(t, gs.Save(sampleSeries(l)))
	zero := gesture.NewSeries(l)
	require.NoError(t, gs.Save(zero))

	got, err := gs.Load()
	require.NoError(t, err)
	assert.Equal(t, zero, got)
}

func TestRegionTooSmall(t *testing.T) {
	_, err := NewGestureStore(gesture.DefaultLayout, NewMemoryRegion(100))
	assert.ErrorIs(t, err, ErrRegionSize)
}

func TestSaveRejectsWrongShape(t *testing.T) {
	l := gesture.DefaultLayout
	gs, err := NewGestureStore(l, NewMemoryRegion(l.RegionSize()))
	require.NoError(t, err)

	short := gesture.NewSeries(gesture.Layout{Axes: 3, Samples: 10, Window: 8, Trim: 1})
	assert.Error(t, gs.Save(short))
}

func TestRegionBounds(t *testing.T) {
	r := NewMemoryRegion(8)
	_, err := r.ReadBytes(4, 8)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.ErrorIs(t, r.WriteBytes(-1, []byte{1}), ErrOutOfRange)

	require.NoError(t, r.WriteBytes(6, []byte{1, 2}))
	b, err := r.ReadBytes(5, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, b)
}

func TestFileRegionPartialWriteKeepsRest(t *testing.T) {
	r := NewFileRegion(filepath.Join(t.TempDir(), "sub", "r.bin"), 6)
	require.NoError(t, r.WriteBytes(0, []byte{1, 2, 3, 4, 5, 6}))
	require.NoError(t, r.WriteBytes(2, []byte{9, 9}))

	b, err := r.ReadBytes(0, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 9, 9, 5, 6}, b)

	entries, err := os.ReadDir(filepath.Dir(r.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}
