package device

import (
	"syscall"
	"time"

	"github.com/holoplot/go-evdev"

	"github.com/pleimann/camel-keys/internal/keys"
)

// Kind classifies a raw input event.
type Kind int

const (
	// Other is any event that is not a key transition or a sync report.
	Other Kind = iota
	KeyDown
	KeyUp
	// KeyRepeat is kernel autorepeat (value 2).
	KeyRepeat
	Sync
)

func (k Kind) String() string {
	switch k {
	case KeyDown:
		return "down"
	case KeyUp:
		return "up"
	case KeyRepeat:
		return "repeat"
	case Sync:
		return "sync"
	default:
		return "other"
	}
}

// Event is a raw event read from the input device.
type Event struct {
	Kind Kind
	Raw  evdev.InputEvent
	Time time.Time
}

// NewEvent classifies raw and converts its kernel timestamp.
func NewEvent(raw evdev.InputEvent) Event {
	ev := Event{Kind: Other, Raw: raw, Time: time.Unix(raw.Time.Unix())}
	switch raw.Type {
	case evdev.EV_SYN:
		ev.Kind = Sync
	case evdev.EV_KEY:
		switch evdev.NewKeyEvent(&raw).State {
		case evdev.KeyDown:
			ev.Kind = KeyDown
		case evdev.KeyUp:
			ev.Kind = KeyUp
		case evdev.KeyHold:
			ev.Kind = KeyRepeat
		}
	}
	return ev
}

// IsTransition reports whether the event is a key press or release.
func (e Event) IsTransition() bool {
	return e.Kind == KeyDown || e.Kind == KeyUp
}

// Key returns the key transition. Only meaningful when IsTransition.
func (e Event) Key() keys.Event {
	return keys.Event{
		Code:    keys.SourceCode(e.Raw.Code),
		Pressed: e.Kind == KeyDown,
		Time:    e.Time,
	}
}

func timeval(t time.Time) syscall.Timeval {
	return syscall.NsecToTimeval(t.UnixNano())
}

// keyEvent builds the raw EV_KEY event for an output transition.
func keyEvent(ev keys.OutputEvent) evdev.InputEvent {
	value := int32(evdev.KeyUp)
	if ev.Pressed {
		value = int32(evdev.KeyDown)
	}
	return evdev.InputEvent{
		Time:  timeval(ev.Time),
		Type:  evdev.EV_KEY,
		Code:  evdev.EvCode(ev.Code),
		Value: value,
	}
}

func synReport(t time.Time) evdev.InputEvent {
	return evdev.InputEvent{Time: timeval(t), Type: evdev.EV_SYN, Code: evdev.SYN_REPORT}
}
