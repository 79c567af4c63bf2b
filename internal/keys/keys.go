// Package keys identifies physical and emitted keys by their Linux evdev codes.
//
// Both SourceCode and OutputCode live in the EV_KEY code space defined by the
// kernel (KEY_A, KEY_LEFTCTRL, ...). A source key maps to the output key with
// the same code value, which is what an unremapped keyboard would send.
package keys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holoplot/go-evdev"
)

// ErrUnknownKey is returned when a key name has no evdev code.
var ErrUnknownKey = errors.New("unknown key")

// SourceCode identifies a physical key on the input device.
type SourceCode evdev.EvCode

// OutputCode identifies a key emitted on the virtual device.
type OutputCode evdev.EvCode

func (c SourceCode) String() string { return codeName(evdev.EvCode(c)) }

func (c OutputCode) String() string { return codeName(evdev.EvCode(c)) }

// ShortName returns the lower-case name without the KEY_ prefix, e.g. "leftctrl".
// Parse accepts it back.
func (c OutputCode) ShortName() string { return shortName(evdev.EvCode(c)) }

// ShortName returns the lower-case name without the KEY_ prefix.
func (c SourceCode) ShortName() string { return shortName(evdev.EvCode(c)) }

// ToOutput maps a source key to the output key with the same code.
func ToOutput(c SourceCode) OutputCode {
	return OutputCode(c)
}

// aliases maps the short names used in keymap files to evdev names.
var aliases = map[string]string{
	"ret":        "KEY_ENTER",
	"return":     "KEY_ENTER",
	"spc":        "KEY_SPACE",
	"bspc":       "KEY_BACKSPACE",
	"del":        "KEY_DELETE",
	"ins":        "KEY_INSERT",
	"pgup":       "KEY_PAGEUP",
	"pgdn":       "KEY_PAGEDOWN",
	"caps":       "KEY_CAPSLOCK",
	"ctrl":       "KEY_LEFTCTRL",
	"control":    "KEY_LEFTCTRL",
	"lctl":       "KEY_LEFTCTRL",
	"lctrl":      "KEY_LEFTCTRL",
	"rctl":       "KEY_RIGHTCTRL",
	"rctrl":      "KEY_RIGHTCTRL",
	"shift":      "KEY_LEFTSHIFT",
	"lsft":       "KEY_LEFTSHIFT",
	"lshift":     "KEY_LEFTSHIFT",
	"rsft":       "KEY_RIGHTSHIFT",
	"rshift":     "KEY_RIGHTSHIFT",
	"alt":        "KEY_LEFTALT",
	"lalt":       "KEY_LEFTALT",
	"ralt":       "KEY_RIGHTALT",
	"meta":       "KEY_LEFTMETA",
	"super":      "KEY_LEFTMETA",
	"win":        "KEY_LEFTMETA",
	"cmd":        "KEY_LEFTMETA",
	"lmet":       "KEY_LEFTMETA",
	"rmet":       "KEY_RIGHTMETA",
	"grv":        "KEY_GRAVE",
	"min":        "KEY_MINUS",
	"eql":        "KEY_EQUAL",
	"lbrc":       "KEY_LEFTBRACE",
	"rbrc":       "KEY_RIGHTBRACE",
	"bksl":       "KEY_BACKSLASH",
	"scln":       "KEY_SEMICOLON",
	"apos":       "KEY_APOSTROPHE",
	"comm":       "KEY_COMMA",
	"slsh":       "KEY_SLASH",
	"prnt":       "KEY_SYSRQ",
	"print":      "KEY_SYSRQ",
	"menu":       "KEY_COMPOSE",
	"pause":      "KEY_PAUSE",
	"nlck":       "KEY_NUMLOCK",
	"slck":       "KEY_SCROLLLOCK",
	"mute":       "KEY_MUTE",
	"volu":       "KEY_VOLUMEUP",
	"vold":       "KEY_VOLUMEDOWN",
	"escape":     "KEY_ESC",
	"pageup":     "KEY_PAGEUP",
	"pagedown":   "KEY_PAGEDOWN",
	"capslock":   "KEY_CAPSLOCK",
	"apostrophe": "KEY_APOSTROPHE",
}

// ParseSource parses a key name into a SourceCode.
func ParseSource(name string) (SourceCode, error) {
	c, err := parse(name)
	return SourceCode(c), err
}

// ParseOutput parses a key name into an OutputCode.
func ParseOutput(name string) (OutputCode, error) {
	c, err := parse(name)
	return OutputCode(c), err
}

// parse accepts evdev names ("KEY_A"), short names ("a", "esc", "f1",
// "leftctrl") and the aliases above, case-insensitively.
func parse(name string) (evdev.EvCode, error) {
	s := strings.TrimSpace(name)
	if s == "" {
		return 0, fmt.Errorf("%w: empty name", ErrUnknownKey)
	}

	lower := strings.ToLower(s)
	evName, ok := aliases[lower]
	if !ok {
		evName = strings.ToUpper(s)
		if !strings.HasPrefix(evName, "KEY_") && !strings.HasPrefix(evName, "BTN_") {
			evName = "KEY_" + evName
		}
	}

	code, ok := evdev.KEYFromString[evName]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
	return code, nil
}

func codeName(c evdev.EvCode) string {
	if name, ok := evdev.KEYToString[c]; ok {
		return name
	}
	return fmt.Sprintf("KEY_%d", uint16(c))
}

func shortName(c evdev.EvCode) string {
	return strings.ToLower(strings.TrimPrefix(codeName(c), "KEY_"))
}
