package keys

import (
	"fmt"
	"time"
)

// Event is a physical key transition read from the input device.
type Event struct {
	Code    SourceCode
	Pressed bool
	Time    time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Code, stateName(e.Pressed))
}

// OutputEvent is a key transition to be written to the virtual device.
type OutputEvent struct {
	Code    OutputCode
	Pressed bool
	Time    time.Time
}

func (e OutputEvent) String() string {
	return fmt.Sprintf("%s %s", e.Code, stateName(e.Pressed))
}

// Down returns a key-down event for c at t.
func Down(c SourceCode, t time.Time) Event { return Event{Code: c, Pressed: true, Time: t} }

// Up returns a key-up event for c at t.
func Up(c SourceCode, t time.Time) Event { return Event{Code: c, Pressed: false, Time: t} }

func stateName(pressed bool) string {
	if pressed {
		return "down"
	}
	return "up"
}
