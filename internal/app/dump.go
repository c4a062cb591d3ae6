package app

import (
	"fmt"
	"io"

	"github.com/relabs-tech/gesture_lock/internal/config"
	"github.com/relabs-tech/gesture_lock/internal/gesture"
)

// RunDump prints the persisted template as a sample/axis table.
func RunDump(cfg *config.Config, w io.Writer) error {
	var cl closers
	defer cl.Close()

	gs, err := buildStore(cfg, &cl)
	if err != nil {
		return err
	}
	return dumpTemplate(gs, cfg.Layout(), w)
}

func dumpTemplate(gs interface{ Load() (gesture.Series, error) }, l gesture.Layout, w io.Writer) error {
	s, err := gs.Load()
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	if _, err := fmt.Fprintf(w, "stored gesture: %d axes x %d samples\n", l.Axes, l.Samples); err != nil {
		return err
	}
	return gesture.WriteTable(w, s)
}
