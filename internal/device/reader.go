package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/holoplot/go-evdev"

	"github.com/pleimann/camel-keys/internal/keys"
	ilog "github.com/pleimann/camel-keys/internal/log"
	"github.com/pleimann/camel-keys/internal/utils"
)

// ErrNoDevice is returned when neither a path nor a name is configured.
var ErrNoDevice = errors.New("no input device configured")

// Source is the raw side of an input device.
type Source interface {
	ReadOne() (*evdev.InputEvent, error)
	Close() error
}

// Reader reads key events from an evdev input device.
type Reader struct {
	src    Source
	dev    *evdev.InputDevice
	path   string
	name   string
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	grabbed bool
}

// OpenOptions selects the input device. Path wins over Name.
type OpenOptions struct {
	Path string
	Name string
	Grab bool
}

// Open opens the configured input device and optionally grabs it so the
// original key events stop reaching the rest of the system.
func Open(opts OpenOptions, logger *slog.Logger) (*Reader, error) {
	var (
		dev *evdev.InputDevice
		err error
	)
	switch {
	case opts.Path != "":
		dev, err = evdev.Open(opts.Path)
	case opts.Name != "":
		dev, err = evdev.OpenByName(opts.Name)
	default:
		return nil, fmt.Errorf("%w\n"+
			"  Run '"+utils.ExecutableName()+" list-devices' to see available keyboards\n"+
			"  Run '"+utils.ExecutableName()+" set-device' to configure one", ErrNoDevice)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open input device %s: %w\n"+
			"  This may be a permissions issue. Add your user to the 'input' group\n"+
			"  or run with sufficient privileges", describe(opts), err)
	}

	name, _ := dev.Name()
	r := &Reader{
		src:    dev,
		dev:    dev,
		path:   dev.Path(),
		name:   name,
		logger: ilog.Nop(logger).With("component", "input", "device", dev.Path()),
	}

	if opts.Grab {
		if err := dev.Grab(); err != nil {
			dev.Close()
			return nil, fmt.Errorf("failed to grab %s: %w (is another remapper running?)", r.path, err)
		}
		r.grabbed = true
	}
	r.logger.Info("input device opened", "name", name, "grabbed", r.grabbed)
	return r, nil
}

// NewReader wraps an already open source. Used with fake devices.
func NewReader(src Source, logger *slog.Logger) *Reader {
	return &Reader{src: src, logger: ilog.Nop(logger)}
}

func describe(opts OpenOptions) string {
	if opts.Path != "" {
		return opts.Path
	}
	return fmt.Sprintf("named %q", opts.Name)
}

// Path returns the device node path.
func (r *Reader) Path() string { return r.path }

// Name returns the kernel name of the device.
func (r *Reader) Name() string { return r.name }

// KeyCodes returns every EV_KEY code the device can report, sorted. These
// are declared on the virtual device so unmapped keys can pass through.
func (r *Reader) KeyCodes() []keys.OutputCode {
	if r.dev == nil {
		return nil
	}
	var out []keys.OutputCode
	for _, c := range r.dev.CapableEvents(evdev.EV_KEY) {
		out = append(out, keys.OutputCode(c))
	}
	slices.Sort(out)
	return out
}

// ReadEvents reads events until ctx is done or the device fails, sending
// each one on events. Cancelling ctx closes the device to unblock the read.
func (r *Reader) ReadEvents(ctx context.Context, events chan<- Event) error {
	stop := context.AfterFunc(ctx, func() { r.Close() })
	defer stop()

	for {
		raw, err := r.src.ReadOne()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read error: %w", err)
		}

		select {
		case events <- NewEvent(*raw):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close releases the grab and closes the device.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.grabbed && r.dev != nil {
		if err := r.dev.Ungrab(); err != nil {
			r.logger.Debug("ungrab failed", "error", err)
		}
	}
	return r.src.Close()
}
