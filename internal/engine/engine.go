// Package engine resolves physical key transitions into output transitions.
//
// The Engine keeps one state machine per source key and a stack of active
// layers. It is single-threaded and driven purely by event timestamps: time
// only moves forward through Process and Advance, so feeding the same events
// twice gives the same output. The caller owns the clock and arms its timer
// from NextDeadline.
//
// An output code shared by several keys is reference counted: it goes down
// with the first press and up with the last release. A tap of a code that
// another key already holds therefore emits nothing.
package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/pleimann/camel-keys/internal/action"
	"github.com/pleimann/camel-keys/internal/keymap"
	"github.com/pleimann/camel-keys/internal/keys"
	ilog "github.com/pleimann/camel-keys/internal/log"
)

// ErrSourceChanged is returned by SetKeymap when the new keymap declares a
// different source key list.
var ErrSourceChanged = errors.New("keymap source keys changed")

// ErrUnmappedKey is returned by Process for keys outside the keymap.
var ErrUnmappedKey = keymap.ErrUnmappedKey

// State is the resolution state of one source key.
type State int

const (
	Idle State = iota
	Pending
	Held
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Held:
		return "held"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Policy decides what happens to pending tap-hold keys when another key
// goes down.
type Policy int

const (
	// Eager resolves every pending key as hold before the new key is handled.
	Eager Policy = iota
	// Lazy leaves pending keys alone until their own release or deadline.
	Lazy
)

func (p Policy) String() string {
	if p == Lazy {
		return "lazy"
	}
	return "eager"
}

// ParsePolicy accepts "eager" (or empty) and "lazy".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "eager":
		return Eager, nil
	case "lazy":
		return Lazy, nil
	default:
		return Eager, fmt.Errorf("unknown policy %q (want eager or lazy)", s)
	}
}

// Sink receives output transitions in emission order.
type Sink interface {
	Emit(keys.OutputEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(keys.OutputEvent)

func (f SinkFunc) Emit(ev keys.OutputEvent) { f(ev) }

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Transitions are logged at trace level.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = ilog.Nop(l) }
}

// WithPolicy sets the interleaving policy. The default is Eager.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// keyState is the state machine of one source key.
type keyState struct {
	state State
	// pressed is what was applied on entry to Held; release undoes exactly it.
	pressed action.Action
	// holdTap and deadline are set while Pending.
	holdTap  action.HoldTap
	deadline time.Time
	// order is the press sequence number, used for eager resolution order.
	order uint64
}

// Engine is the resolution engine. It is not safe for concurrent use.
type Engine struct {
	km     *keymap.Keymap
	sink   Sink
	policy Policy
	logger *slog.Logger

	keys  []keyState
	stack []int
	down  map[keys.OutputCode]int
	order uint64
	// cause is the source index whose transition is being applied, or -1.
	cause int
}

// New creates an engine for km writing to sink.
func New(km *keymap.Keymap, sink Sink, opts ...Option) *Engine {
	e := &Engine{
		km:     km,
		sink:   sink,
		logger: ilog.Nop(nil),
		keys:   make([]keyState, km.Len()),
		stack:  []int{0},
		down:   make(map[keys.OutputCode]int),
		cause:  -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Keymap returns the active keymap.
func (e *Engine) Keymap() *keymap.Keymap { return e.km }

// Policy returns the configured interleaving policy.
func (e *Engine) Policy() Policy { return e.policy }

// Process handles one physical transition. Deadlines at or before ev.Time
// fire first. Keys outside the keymap fail with ErrUnmappedKey and change
// nothing.
func (e *Engine) Process(ev keys.Event) error {
	i, err := e.km.Index(ev.Code)
	if err != nil {
		return err
	}
	e.Advance(ev.Time)

	ks := &e.keys[i]
	if ev.Pressed {
		if ks.state != Idle {
			e.logger.Debug("ignoring repeated press", "key", ev.Code, "state", ks.state)
			return nil
		}
		if e.policy == Eager {
			e.resolvePendingAsHold(ev.Time)
		}
		e.press(i, ev.Time)
		return nil
	}

	switch ks.state {
	case Idle:
		e.logger.Debug("ignoring release of idle key", "key", ev.Code)
	case Pending:
		e.resolveTap(i, ev.Time)
	case Held:
		e.cause = i
		e.trace("release", i, ks.pressed)
		e.release(ks.pressed, ev.Time)
		*ks = keyState{}
	}
	return nil
}

// Advance fires every pending deadline at or before now, earliest first.
// Ties are broken by source index.
func (e *Engine) Advance(now time.Time) {
	for {
		i, ok := e.nextPending()
		if !ok || e.keys[i].deadline.After(now) {
			return
		}
		e.resolveHold(i, e.keys[i].deadline)
	}
}

// NextDeadline returns the earliest armed deadline, if any key is pending.
func (e *Engine) NextDeadline() (time.Time, bool) {
	i, ok := e.nextPending()
	if !ok {
		return time.Time{}, false
	}
	return e.keys[i].deadline, true
}

// ReleaseAll returns every key to Idle. Pending keys are dropped without
// output, held keys are released, and any code still down gets its up.
// Toggled layers stay active.
func (e *Engine) ReleaseAll(now time.Time) {
	for i := range e.keys {
		ks := &e.keys[i]
		switch ks.state {
		case Pending:
			e.trace("drop pending", i, ks.holdTap)
		case Held:
			e.cause = i
			e.trace("release", i, ks.pressed)
			e.release(ks.pressed, now)
		}
		*ks = keyState{}
	}

	e.cause = -1

	stuck := make([]keys.OutputCode, 0, len(e.down))
	for code, n := range e.down {
		if n > 0 {
			stuck = append(stuck, code)
		}
	}
	slices.Sort(stuck)
	for _, code := range stuck {
		e.down[code] = 0
		e.emit(code, false, now)
	}
	clear(e.down)
}

// SetKeymap swaps in km, which must declare the same source keys. The layer
// stack is reset to the base layer. Callers release keys first with
// ReleaseAll; a key still held keeps the action it was pressed with.
func (e *Engine) SetKeymap(km *keymap.Keymap) error {
	if !e.km.SameSource(km) {
		return ErrSourceChanged
	}
	e.km = km
	e.stack = []int{0}
	return nil
}

// Layers returns the active layer stack, base first.
func (e *Engine) Layers() []int { return slices.Clone(e.stack) }

// State returns the state of the key at source index i.
func (e *Engine) State(i int) State {
	if i < 0 || i >= len(e.keys) {
		return Idle
	}
	return e.keys[i].state
}

// Down returns the output codes currently held down, sorted.
func (e *Engine) Down() []keys.OutputCode {
	var out []keys.OutputCode
	for code, n := range e.down {
		if n > 0 {
			out = append(out, code)
		}
	}
	slices.Sort(out)
	return out
}

// lookup resolves the action for index i through the layer stack, top first.
// Transparent entries fall through; a fully transparent stack is NoOp.
func (e *Engine) lookup(i int) action.Action {
	for j := len(e.stack) - 1; j >= 0; j-- {
		a, err := e.km.ActionAt(e.stack[j], i)
		if err != nil {
			e.logger.Warn("layer lookup failed", "layer", e.stack[j], "error", err)
			continue
		}
		if _, ok := a.(action.Trans); ok {
			continue
		}
		return a
	}
	return action.NoOp{}
}

// press handles a key-down on an idle key.
func (e *Engine) press(i int, now time.Time) {
	ks := &e.keys[i]
	e.cause = i
	e.order++
	a := e.lookup(i)

	if ht, ok := a.(action.HoldTap); ok {
		*ks = keyState{
			state:    Pending,
			holdTap:  ht,
			deadline: now.Add(ht.Timeout),
			order:    e.order,
		}
		e.trace("pending", i, ht)
		return
	}

	*ks = keyState{state: Held, pressed: e.apply(a, now), order: e.order}
	e.trace("held", i, ks.pressed)
}

// resolveTap handles the release of a pending key before its deadline.
func (e *Engine) resolveTap(i int, now time.Time) {
	ks := &e.keys[i]
	e.cause = i
	tap := ks.holdTap.Tap
	e.trace("tap", i, tap)
	*ks = keyState{}
	applied := e.apply(tap, now)
	e.release(applied, now)
}

// resolveHold settles a pending key as hold at time at.
func (e *Engine) resolveHold(i int, at time.Time) {
	ks := &e.keys[i]
	e.cause = i
	hold := ks.holdTap.Hold
	order := ks.order
	e.trace("hold", i, hold)
	*ks = keyState{state: Held, order: order}
	ks.pressed = e.apply(hold, at)
}

// resolvePendingAsHold settles every pending key as hold, in press order.
func (e *Engine) resolvePendingAsHold(now time.Time) {
	var pending []int
	for i := range e.keys {
		if e.keys[i].state == Pending {
			pending = append(pending, i)
		}
	}
	slices.SortFunc(pending, func(a, b int) int {
		return cmp.Compare(e.keys[a].order, e.keys[b].order)
	})
	for _, i := range pending {
		e.resolveHold(i, now)
	}
}

// nextPending returns the pending key with the earliest deadline.
func (e *Engine) nextPending() (int, bool) {
	best := -1
	for i := range e.keys {
		ks := &e.keys[i]
		if ks.state != Pending {
			continue
		}
		if best < 0 || ks.deadline.Before(e.keys[best].deadline) {
			best = i
		}
	}
	return best, best >= 0
}

// apply performs the press side of a resolved action and returns what
// release has to undo.
func (e *Engine) apply(a action.Action, now time.Time) action.Action {
	switch v := a.(type) {
	case action.Output:
		e.pressCode(v.Code, now)
		return v
	case action.NoOp, action.Trans:
		return action.NoOp{}
	case action.Layer:
		if !e.validLayer(v.Index) {
			return action.NoOp{}
		}
		e.stack = append(e.stack, v.Index)
		return v
	case action.ToggleLayer:
		if !e.validLayer(v.Index) {
			return action.NoOp{}
		}
		if j := e.topmost(v.Index); j > 0 {
			e.stack = slices.Delete(e.stack, j, j+1)
		} else {
			e.stack = append(e.stack, v.Index)
		}
		return v
	case action.HoldTap:
		// Nested tap-holds are rejected when the keymap is built.
		e.logger.Warn("nested tap-hold treated as no-op", "action", v)
		return action.NoOp{}
	default:
		e.logger.Warn("unsupported action treated as no-op", "action", a)
		return action.NoOp{}
	}
}

// release undoes what apply returned.
func (e *Engine) release(a action.Action, now time.Time) {
	switch v := a.(type) {
	case action.Output:
		e.releaseCode(v.Code, now)
	case action.Layer:
		if j := e.topmost(v.Index); j > 0 {
			e.stack = slices.Delete(e.stack, j, j+1)
		}
	case action.NoOp, action.ToggleLayer, nil:
	}
}

// topmost returns the highest stack position holding layer, or -1. The base
// entry at position 0 is never reported.
func (e *Engine) topmost(layer int) int {
	for j := len(e.stack) - 1; j > 0; j-- {
		if e.stack[j] == layer {
			return j
		}
	}
	return -1
}

func (e *Engine) validLayer(layer int) bool {
	if layer < 0 || layer >= e.km.NumLayers() {
		e.logger.Warn("layer action out of range treated as no-op", "layer", layer, "layers", e.km.NumLayers())
		return false
	}
	return true
}

func (e *Engine) pressCode(code keys.OutputCode, now time.Time) {
	e.down[code]++
	if e.down[code] == 1 {
		e.emit(code, true, now)
	}
}

func (e *Engine) releaseCode(code keys.OutputCode, now time.Time) {
	n := e.down[code]
	if n == 0 {
		return
	}
	if n == 1 {
		delete(e.down, code)
		e.emit(code, false, now)
		return
	}
	e.down[code] = n - 1
}

func (e *Engine) emit(code keys.OutputCode, pressed bool, now time.Time) {
	ev := keys.OutputEvent{Code: code, Pressed: pressed, Time: now}
	if e.cause >= 0 {
		e.logger.Log(context.Background(), ilog.LevelTrace, "emit", "event", ev, "key", e.km.SourceAt(e.cause))
	} else {
		e.logger.Log(context.Background(), ilog.LevelTrace, "emit", "event", ev)
	}
	if e.sink != nil {
		e.sink.Emit(ev)
	}
}

func (e *Engine) trace(msg string, i int, a action.Action) {
	e.logger.Log(context.Background(), ilog.LevelTrace, msg,
		"key", e.km.SourceAt(i), "action", a, "layers", e.stack)
}
