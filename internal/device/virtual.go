package device

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"

	"github.com/pleimann/camel-keys/internal/keys"
	ilog "github.com/pleimann/camel-keys/internal/log"
)

// UinputPath is the uinput control node.
const UinputPath = "/dev/uinput"

// ErrUinput is returned when the uinput node is missing or not writable.
var ErrUinput = errors.New("cannot access " + UinputPath)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("device closed")

// busUSB is BUS_USB from linux/input.h.
const busUSB = 0x03

// Writer is the raw side of an output device.
type Writer interface {
	WriteOne(*evdev.InputEvent) error
	Close() error
}

// VirtualOptions describes the uinput device to create.
type VirtualOptions struct {
	Name      string
	VendorID  uint16
	ProductID uint16
}

// VirtualKeyboard is the synthetic keyboard the remapped events are
// written to. Its key capabilities are fixed at creation.
type VirtualKeyboard struct {
	w      Writer
	codes  []keys.OutputCode
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// CheckUinput verifies that /dev/uinput exists and is writable.
func CheckUinput() error {
	if err := unix.Access(UinputPath, unix.W_OK); err != nil {
		return fmt.Errorf("%w: %v\n"+
			"  Load the module with 'modprobe uinput' and make sure your user can\n"+
			"  write to it (for example a udev rule granting the 'input' group access)",
			ErrUinput, err)
	}
	return nil
}

// NewVirtualKeyboard creates a uinput keyboard able to emit codes. Kernel
// autorepeat (EV_REP) is enabled on it.
func NewVirtualKeyboard(opts VirtualOptions, codes []keys.OutputCode, logger *slog.Logger) (*VirtualKeyboard, error) {
	if err := CheckUinput(); err != nil {
		return nil, err
	}

	codes = normalize(codes)
	evCodes := make([]evdev.EvCode, len(codes))
	for i, c := range codes {
		evCodes[i] = evdev.EvCode(c)
	}

	dev, err := evdev.CreateDevice(
		opts.Name,
		evdev.InputID{
			BusType: busUSB,
			Vendor:  opts.VendorID,
			Product: opts.ProductID,
			Version: 1,
		},
		map[evdev.EvType][]evdev.EvCode{
			evdev.EV_KEY: evCodes,
			evdev.EV_REP: nil,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual keyboard %q: %w", opts.Name, err)
	}

	v := newVirtualKeyboard(dev, codes, logger)
	v.logger.Info("virtual keyboard created", "name", opts.Name, "keys", len(codes))
	return v, nil
}

func newVirtualKeyboard(w Writer, codes []keys.OutputCode, logger *slog.Logger) *VirtualKeyboard {
	return &VirtualKeyboard{
		w:      w,
		codes:  normalize(codes),
		logger: ilog.Nop(logger).With("component", "output"),
	}
}

func normalize(codes []keys.OutputCode) []keys.OutputCode {
	codes = slices.Clone(codes)
	slices.Sort(codes)
	return slices.Compact(codes)
}

// Codes returns the declared key codes, sorted.
func (v *VirtualKeyboard) Codes() []keys.OutputCode {
	return slices.Clone(v.codes)
}

// CanEmit reports whether code was declared at creation.
func (v *VirtualKeyboard) CanEmit(code keys.OutputCode) bool {
	_, ok := slices.BinarySearch(v.codes, code)
	return ok
}

// WriteKey writes one key transition followed by a sync report.
func (v *VirtualKeyboard) WriteKey(ev keys.OutputEvent) error {
	if !v.CanEmit(ev.Code) {
		v.logger.Warn("key not declared on virtual device, dropping", "key", ev.Code)
		return nil
	}
	return v.write(keyEvent(ev), synReport(ev.Time))
}

// WriteRaw forwards an event read from the input device, followed by a
// sync report. Sync events themselves are not forwarded.
func (v *VirtualKeyboard) WriteRaw(ev Event) error {
	if ev.Kind == Sync {
		return nil
	}
	return v.write(ev.Raw, synReport(ev.Time))
}

func (v *VirtualKeyboard) write(events ...evdev.InputEvent) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}
	for i := range events {
		if err := v.w.WriteOne(&events[i]); err != nil {
			return fmt.Errorf("write error: %w", err)
		}
	}
	return nil
}

// Close destroys the virtual device.
func (v *VirtualKeyboard) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil
	}
	v.closed = true
	return v.w.Close()
}
