package app

import (
	"encoding/json"
	"fmt"

	"github.com/relabs-tech/gesture_lock/internal/sensors"
)

// Command presses or releases a trigger remotely. It is the payload of the
// command topic and of web socket messages.
type Command struct {
	Action string `json:"action"` // record, attempt
	Active bool   `json:"active"`
}

func (c Command) validate() error {
	if c.Action != "record" && c.Action != "attempt" {
		return fmt.Errorf("command: unknown action %q", c.Action)
	}
	return nil
}

func (c Command) apply(t *sensors.SoftTriggers) {
	if c.Action == "record" {
		t.SetRecord(c.Active)
	} else {
		t.SetAttempt(c.Active)
	}
}

func parseCommand(payload []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(payload, &c); err != nil {
		return c, fmt.Errorf("command: %w", err)
	}
	return c, c.validate()
}
