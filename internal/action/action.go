// Package action defines what a key press can mean.
//
// Action is a closed set: NoOp, Trans, Output, HoldTap, Layer and ToggleLayer.
// Code that consumes actions switches over the concrete types exhaustively;
// adding a kind means touching every such switch.
package action

import (
	"errors"
	"fmt"
	"time"

	"github.com/pleimann/camel-keys/internal/keys"
)

var (
	// ErrInvalidAction is returned for actions that cannot be resolved,
	// such as a HoldTap nested inside another HoldTap.
	ErrInvalidAction = errors.New("invalid action")
	// ErrLayerOutOfRange is returned for a layer index the keymap does not have.
	ErrLayerOutOfRange = errors.New("layer out of range")
)

// MaxHoldTapDepth bounds HoldTap nesting. Tap and hold branches must be
// plain actions.
const MaxHoldTapDepth = 1

// Action is implemented by the types in this package only.
type Action interface {
	isAction()
	String() string
}

// NoOp absorbs the key: nothing is emitted.
type NoOp struct{}

// Trans falls through to the next active layer below.
type Trans struct{}

// Output emits a fixed key.
type Output struct {
	Code keys.OutputCode
}

// HoldTap resolves to Tap when the key is released before Timeout and to
// Hold otherwise.
type HoldTap struct {
	Tap     Action
	Hold    Action
	Timeout time.Duration
}

// Layer activates a layer while the key is held.
type Layer struct {
	Index int
}

// ToggleLayer activates a layer on press, or deactivates it if it is active.
type ToggleLayer struct {
	Index int
}

func (NoOp) isAction()        {}
func (Trans) isAction()       {}
func (Output) isAction()      {}
func (HoldTap) isAction()     {}
func (Layer) isAction()       {}
func (ToggleLayer) isAction() {}

func (NoOp) String() string  { return "XX" }
func (Trans) String() string { return "_" }

func (o Output) String() string { return o.Code.ShortName() }

func (h HoldTap) String() string {
	return fmt.Sprintf("tap-hold(%s, %s, %s)", h.Tap, h.Hold, h.Timeout)
}

func (l Layer) String() string       { return fmt.Sprintf("layer(%d)", l.Index) }
func (t ToggleLayer) String() string { return fmt.Sprintf("toggle(%d)", t.Index) }

// Key is shorthand for an Output action from a source-style code.
func Key(c keys.OutputCode) Output { return Output{Code: c} }

// ResolveImmediate returns the code emitted by actions that need no
// disambiguation. NoOp, HoldTap and the layer actions report false.
func ResolveImmediate(a Action) (keys.OutputCode, bool) {
	if o, ok := a.(Output); ok {
		return o.Code, true
	}
	return 0, false
}

// Validate checks a single action against a keymap with the given number
// of layers.
func Validate(a Action, layers int) error {
	return validate(a, layers, 0)
}

func validate(a Action, layers, depth int) error {
	switch v := a.(type) {
	case nil:
		return fmt.Errorf("%w: missing action", ErrInvalidAction)
	case NoOp, Trans, Output:
		return nil
	case Layer:
		return checkLayer(v.Index, layers)
	case ToggleLayer:
		return checkLayer(v.Index, layers)
	case HoldTap:
		if depth >= MaxHoldTapDepth {
			return fmt.Errorf("%w: tap-hold cannot be nested", ErrInvalidAction)
		}
		if v.Timeout <= 0 {
			return fmt.Errorf("%w: tap-hold timeout must be positive, got %s", ErrInvalidAction, v.Timeout)
		}
		for _, branch := range []Action{v.Tap, v.Hold} {
			if _, ok := branch.(Trans); ok {
				return fmt.Errorf("%w: tap-hold branch cannot be transparent", ErrInvalidAction)
			}
			if err := validate(branch, layers, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported action %T", ErrInvalidAction, a)
	}
}

func checkLayer(index, layers int) error {
	if index < 0 || index >= layers {
		return fmt.Errorf("%w: layer %d (have %d)", ErrLayerOutOfRange, index, layers)
	}
	return nil
}

// Outputs returns every code a can emit through any branch, in branch order.
// Duplicates are kept; callers build sets.
func Outputs(a Action) []keys.OutputCode {
	return appendOutputs(nil, a, 0)
}

func appendOutputs(dst []keys.OutputCode, a Action, depth int) []keys.OutputCode {
	switch v := a.(type) {
	case Output:
		return append(dst, v.Code)
	case HoldTap:
		if depth >= MaxHoldTapDepth {
			return dst
		}
		dst = appendOutputs(dst, v.Tap, depth+1)
		return appendOutputs(dst, v.Hold, depth+1)
	default:
		return dst
	}
}
