// Package keymap holds the validated, immutable layer table the engine
// resolves key presses against.
package keymap

import (
	"errors"
	"fmt"

	"github.com/pleimann/camel-keys/internal/action"
	"github.com/pleimann/camel-keys/internal/keys"
)

var (
	ErrNoLayers            = errors.New("keymap has no layers")
	ErrLayerLengthMismatch = errors.New("layer length mismatch")
	ErrDuplicateSourceKey  = errors.New("duplicate source key")
	ErrUnmappedKey         = errors.New("unmapped key")
	ErrLayerOutOfRange     = action.ErrLayerOutOfRange
	ErrInvalidAction       = action.ErrInvalidAction
)

// Layer is one sheet of the keymap. Actions is indexed by source index.
type Layer struct {
	Name    string
	Actions []action.Action
}

// Keymap is the ordered source key list plus its layers. It is never
// modified after New returns; a reload builds a new Keymap.
type Keymap struct {
	source []keys.SourceCode
	index  map[keys.SourceCode]int
	layers []Layer
}

// New validates and builds a keymap. Layer 0 is the base layer.
func New(source []keys.SourceCode, layers []Layer) (*Keymap, error) {
	if len(layers) == 0 {
		return nil, ErrNoLayers
	}

	index := make(map[keys.SourceCode]int, len(source))
	for i, code := range source {
		if prev, ok := index[code]; ok {
			return nil, fmt.Errorf("%w: %s at positions %d and %d", ErrDuplicateSourceKey, code, prev, i)
		}
		index[code] = i
	}

	for li, layer := range layers {
		if len(layer.Actions) != len(source) {
			return nil, fmt.Errorf("%w: layer %d (%s) has %d keys, source has %d",
				ErrLayerLengthMismatch, li, layer.Name, len(layer.Actions), len(source))
		}
		for i, a := range layer.Actions {
			if err := action.Validate(a, len(layers)); err != nil {
				return nil, fmt.Errorf("layer %d (%s) key %d (%s): %w", li, layer.Name, i, source[i], err)
			}
		}
	}

	km := &Keymap{
		source: append([]keys.SourceCode(nil), source...),
		index:  index,
		layers: make([]Layer, len(layers)),
	}
	for i, layer := range layers {
		km.layers[i] = Layer{
			Name:    layer.Name,
			Actions: append([]action.Action(nil), layer.Actions...),
		}
	}
	return km, nil
}

// Len returns the number of source keys.
func (k *Keymap) Len() int { return len(k.source) }

// NumLayers returns the number of layers, including the base layer.
func (k *Keymap) NumLayers() int { return len(k.layers) }

// Source returns a copy of the source key order.
func (k *Keymap) Source() []keys.SourceCode {
	return append([]keys.SourceCode(nil), k.source...)
}

// SourceAt returns the source key at index i.
func (k *Keymap) SourceAt(i int) keys.SourceCode { return k.source[i] }

// Index returns the dense index of a mapped source key.
func (k *Keymap) Index(code keys.SourceCode) (int, error) {
	i, ok := k.index[code]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnmappedKey, code)
	}
	return i, nil
}

// IsMapped reports whether code is intercepted by the keymap.
func (k *Keymap) IsMapped(code keys.SourceCode) bool {
	_, ok := k.index[code]
	return ok
}

// MappedKeys returns the set of intercepted source keys.
func (k *Keymap) MappedKeys() map[keys.SourceCode]struct{} {
	out := make(map[keys.SourceCode]struct{}, len(k.source))
	for _, code := range k.source {
		out[code] = struct{}{}
	}
	return out
}

// LayerFor returns layer i.
func (k *Keymap) LayerFor(i int) (Layer, error) {
	if i < 0 || i >= len(k.layers) {
		return Layer{}, fmt.Errorf("%w: layer %d (have %d)", ErrLayerOutOfRange, i, len(k.layers))
	}
	return k.layers[i], nil
}

// LayerIndex returns the index of the layer with the given name.
func (k *Keymap) LayerIndex(name string) (int, bool) {
	for i, l := range k.layers {
		if l.Name == name {
			return i, true
		}
	}
	return 0, false
}

// ActionAt returns the action at a source index in a layer.
func (k *Keymap) ActionAt(layer, index int) (action.Action, error) {
	l, err := k.LayerFor(layer)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(l.Actions) {
		return nil, fmt.Errorf("%w: index %d", ErrUnmappedKey, index)
	}
	return l.Actions[index], nil
}

// SameSource reports whether both keymaps declare the same source keys in
// the same order.
func (k *Keymap) SameSource(other *Keymap) bool {
	if other == nil || len(k.source) != len(other.source) {
		return false
	}
	for i := range k.source {
		if k.source[i] != other.source[i] {
			return false
		}
	}
	return true
}
