package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/gesture_lock/internal/gesture"
)

// ErrRegionSize is returned when a region is too small for the layout.
var ErrRegionSize = errors.New("store: region smaller than template")

// GestureStore persists one template at offset 0 of a Region: float32
// values, native byte order, axis-major then sample-minor, no header.
// This is the layout of templates already written by deployed units.
type GestureStore struct {
	layout gesture.Layout
	region Region
}

// NewGestureStore checks that region can hold a template for l.
func NewGestureStore(l gesture.Layout, region Region) (*GestureStore, error) {
	if region.Size() < l.RegionSize() {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrRegionSize, l.RegionSize(), region.Size())
	}
	return &GestureStore{layout: l, region: region}, nil
}

// Save overwrites the stored template with s in one region write.
func (g *GestureStore) Save(s gesture.Series) error {
	if !s.Fits(g.layout) {
		return fmt.Errorf("store: series does not match layout %dx%d", g.layout.Axes, g.layout.Samples)
	}
	buf := make([]byte, 0, g.layout.RegionSize())
	for a := 0; a < g.layout.Axes; a++ {
		for i := 0; i < g.layout.Samples; i++ {
			buf = binary.NativeEndian.AppendUint32(buf, math.Float32bits(s[a][i]))
		}
	}
	if err := g.region.WriteBytes(0, buf); err != nil {
		return fmt.Errorf("store: save template: %w", err)
	}
	return nil
}

// Load reads the stored template into a fresh Series. There is no
// integrity check: an unwritten region loads as zeros and a foreign one as
// whatever floats its bytes spell.
func (g *GestureStore) Load() (gesture.Series, error) {
	buf, err := g.region.ReadBytes(0, g.layout.RegionSize())
	if err != nil {
		return nil, fmt.Errorf("store: load template: %w", err)
	}
	s := gesture.NewSeries(g.layout)
	off := 0
	for a := 0; a < g.layout.Axes; a++ {
		for i := 0; i < g.layout.Samples; i++ {
			s[a][i] = math.Float32frombits(binary.NativeEndian.Uint32(buf[off:]))
			off += 4
		}
	}
	return s, nil
}
