// Package remap drives the resolution engine from a live input device and
// writes its output to a virtual keyboard.
package remap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pleimann/camel-keys/internal/capability"
	"github.com/pleimann/camel-keys/internal/device"
	"github.com/pleimann/camel-keys/internal/engine"
	"github.com/pleimann/camel-keys/internal/keymap"
	"github.com/pleimann/camel-keys/internal/keys"
	ilog "github.com/pleimann/camel-keys/internal/log"
	"github.com/pleimann/camel-keys/internal/trace"
)

// ErrDisconnected is returned by Run when the input device goes away.
var ErrDisconnected = errors.New("input device disconnected")

// Input is the physical keyboard.
type Input interface {
	ReadEvents(ctx context.Context, events chan<- device.Event) error
}

// Output is the virtual keyboard.
type Output interface {
	WriteKey(keys.OutputEvent) error
	WriteRaw(device.Event) error
	// Codes returns the key codes the device declares, sorted.
	Codes() []keys.OutputCode
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. It is also handed to the engine.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = ilog.Nop(l) }
}

// WithPolicy sets the engine's interleaving policy.
func WithPolicy(p engine.Policy) Option {
	return func(r *Runner) { r.policy = p }
}

// WithRecorder records every mapped transition before it reaches the engine.
func WithRecorder(rec *trace.Recorder) Option {
	return func(r *Runner) { r.rec = rec }
}

// Runner connects Input, Engine and Output. All engine calls happen on the
// goroutine running Run.
type Runner struct {
	in     Input
	out    Output
	eng    *engine.Engine
	policy engine.Policy
	rec    *trace.Recorder
	logger *slog.Logger
	now    func() time.Time

	reloads  chan *keymap.Keymap
	writeErr error
}

// New creates a runner for km. Every code km can emit must be declared by
// out.
func New(km *keymap.Keymap, in Input, out Output, opts ...Option) (*Runner, error) {
	r := &Runner{
		in:      in,
		out:     out,
		logger:  ilog.Nop(nil),
		now:     time.Now,
		reloads: make(chan *keymap.Keymap, 1),
	}
	for _, opt := range opts {
		opt(r)
	}

	if !capability.Compute(km).Within(out.Codes()) {
		return nil, errors.New("keymap emits keys the output device does not declare")
	}

	r.eng = engine.New(km, engine.SinkFunc(r.write),
		engine.WithLogger(r.logger),
		engine.WithPolicy(r.policy),
	)
	return r, nil
}

// Reload queues km to replace the current keymap. It never blocks; a
// reload still queued is replaced.
func (r *Runner) Reload(km *keymap.Keymap) {
	for {
		select {
		case r.reloads <- km:
			return
		default:
		}
		select {
		case <-r.reloads:
		default:
		}
	}
}

// Run processes input until ctx is done, the input fails or an output
// write fails. Keys still down are released before it returns.
func (r *Runner) Run(ctx context.Context) error {
	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()

	events := make(chan device.Event, 64)
	readErr := make(chan error, 1)
	go func() {
		readErr <- r.in.ReadEvents(readCtx, events)
	}()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	defer r.shutdown()

	r.logger.Info("remapping started", "policy", r.policy, "keys", r.eng.Keymap().Len(), "layers", r.eng.Keymap().NumLayers())

	for {
		r.arm(timer)

		select {
		case <-ctx.Done():
			r.logger.Info("shutting down")
			return nil

		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				return ErrDisconnected
			}
			return fmt.Errorf("%w: %w", ErrDisconnected, err)

		case ev := <-events:
			r.handle(ev)

		case km := <-r.reloads:
			r.swap(km)

		case <-timer.C:
			// Transitions already read may predate the deadline.
			r.drain(events)
			r.eng.Advance(r.now())
		}

		if r.writeErr != nil {
			return fmt.Errorf("output device: %w", r.writeErr)
		}
	}
}

func (r *Runner) arm(timer *time.Timer) {
	deadline, ok := r.eng.NextDeadline()
	if !ok {
		timer.Stop()
		return
	}
	timer.Reset(max(deadline.Sub(r.now()), 0))
}

// drain handles every buffered event without blocking.
func (r *Runner) drain(events <-chan device.Event) {
	for r.writeErr == nil {
		select {
		case ev := <-events:
			r.handle(ev)
		default:
			return
		}
	}
}

func (r *Runner) handle(ev device.Event) {
	switch ev.Kind {
	case device.Sync, device.KeyRepeat:
		// The virtual keyboard syncs every write and repeats on its own
		return
	case device.KeyDown, device.KeyUp:
		key := ev.Key()
		if r.eng.Keymap().IsMapped(key.Code) {
			if err := r.rec.Record(key); err != nil {
				r.logger.Warn("failed to record event", "error", err)
			}
			if err := r.eng.Process(key); err != nil {
				r.logger.Warn("engine rejected event", "event", key, "error", err)
			}
			return
		}
	}

	if err := r.out.WriteRaw(ev); err != nil && r.writeErr == nil {
		r.writeErr = err
	}
}

func (r *Runner) write(ev keys.OutputEvent) {
	if r.writeErr != nil {
		return
	}
	if err := r.out.WriteKey(ev); err != nil {
		r.writeErr = err
	}
}

// swap installs km if it keeps the source keys and only emits declared
// codes. Otherwise the running keymap stays.
func (r *Runner) swap(km *keymap.Keymap) {
	if !r.eng.Keymap().SameSource(km) {
		r.logger.Warn("reload rejected: source keys changed, restart to apply")
		return
	}
	if !capability.Compute(km).Within(r.out.Codes()) {
		r.logger.Warn("reload rejected: keymap emits keys the virtual keyboard does not declare, restart to apply")
		return
	}

	r.eng.ReleaseAll(r.now())
	if err := r.eng.SetKeymap(km); err != nil {
		r.logger.Error("reload failed", "error", err)
		return
	}
	r.logger.Info("keymap reloaded", "layers", km.NumLayers())
}

func (r *Runner) shutdown() {
	r.eng.ReleaseAll(r.now())
	if err := r.rec.Close(); err != nil {
		r.logger.Warn("failed to close recording", "error", err)
	}
}
