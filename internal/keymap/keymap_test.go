package keymap_test

import (
	"testing"
	"time"

	"github.com/holoplot/go-evdev"
	"github.com/pleimann/camel-keys/internal/action"
	"github.com/pleimann/camel-keys/internal/keymap"
	"github.com/pleimann/camel-keys/internal/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	srcEsc = keys.SourceCode(evdev.KEY_ESC)
	src1   = keys.SourceCode(evdev.KEY_1)
	src2   = keys.SourceCode(evdev.KEY_2)
)

func out(c int) action.Action { return action.Key(keys.OutputCode(c)) }

func TestNew(t *testing.T) {
	km, err := keymap.New(
		[]keys.SourceCode{srcEsc, src1, src2},
		[]keymap.Layer{
			{Name: "one", Actions: []action.Action{out(evdev.KEY_ESC), out(evdev.KEY_A), action.Layer{Index: 1}}},
			{Name: "two", Actions: []action.Action{action.Trans{}, out(evdev.KEY_O), action.Trans{}}},
		},
	)
	require.NoError(t, err)

	assert.Equal(t, 3, km.Len())
	assert.Equal(t, 2, km.NumLayers())
	assert.Equal(t, []keys.SourceCode{srcEsc, src1, src2}, km.Source())

	i, err := km.Index(src1)
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	assert.Equal(t, src1, km.SourceAt(i))

	_, err = km.Index(keys.SourceCode(evdev.KEY_Z))
	assert.ErrorIs(t, err, keymap.ErrUnmappedKey)
	assert.False(t, km.IsMapped(keys.SourceCode(evdev.KEY_Z)))
	assert.Len(t, km.MappedKeys(), 3)

	a, err := km.ActionAt(1, 1)
	require.NoError(t, err)
	assert.Equal(t, out(evdev.KEY_O), a)

	_, err = km.LayerFor(2)
	assert.ErrorIs(t, err, keymap.ErrLayerOutOfRange)
	_, err = km.ActionAt(-1, 0)
	assert.ErrorIs(t, err, keymap.ErrLayerOutOfRange)

	idx, ok := km.LayerIndex("two")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	_, ok = km.LayerIndex("three")
	assert.False(t, ok)
}

func TestNewErrors(t *testing.T) {
	holdTap := action.HoldTap{Tap: out(evdev.KEY_ESC), Hold: out(evdev.KEY_LEFTCTRL), Timeout: time.Second}

	tests := []struct {
		name    string
		source  []keys.SourceCode
		layers  []keymap.Layer
		wantErr error
	}{
		{
			name:    "no layers",
			source:  []keys.SourceCode{srcEsc},
			wantErr: keymap.ErrNoLayers,
		},
		{
			name:    "duplicate source",
			source:  []keys.SourceCode{srcEsc, srcEsc},
			layers:  []keymap.Layer{{Actions: []action.Action{action.NoOp{}, action.NoOp{}}}},
			wantErr: keymap.ErrDuplicateSourceKey,
		},
		{
			name:   "short layer",
			source: []keys.SourceCode{srcEsc, src1},
			layers: []keymap.Layer{
				{Actions: []action.Action{action.NoOp{}, action.NoOp{}}},
				{Actions: []action.Action{action.NoOp{}}},
			},
			wantErr: keymap.ErrLayerLengthMismatch,
		},
		{
			name:    "nested hold tap",
			source:  []keys.SourceCode{srcEsc},
			layers:  []keymap.Layer{{Actions: []action.Action{action.HoldTap{Tap: holdTap, Hold: holdTap, Timeout: time.Second}}}},
			wantErr: keymap.ErrInvalidAction,
		},
		{
			name:    "layer out of range",
			source:  []keys.SourceCode{srcEsc},
			layers:  []keymap.Layer{{Actions: []action.Action{action.Layer{Index: 1}}}},
			wantErr: keymap.ErrLayerOutOfRange,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			km, err := keymap.New(tc.source, tc.layers)
			assert.Nil(t, km)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestNewCopiesInput(t *testing.T) {
	source := []keys.SourceCode{srcEsc}
	actions := []action.Action{out(evdev.KEY_A)}
	km, err := keymap.New(source, []keymap.Layer{{Name: "base", Actions: actions}})
	require.NoError(t, err)

	source[0] = src1
	actions[0] = action.NoOp{}

	assert.Equal(t, srcEsc, km.SourceAt(0))
	a, err := km.ActionAt(0, 0)
	require.NoError(t, err)
	assert.Equal(t, out(evdev.KEY_A), a)
}

func TestSameSource(t *testing.T) {
	layer := func(n int) []keymap.Layer {
		acts := make([]action.Action, n)
		for i := range acts {
			acts[i] = action.NoOp{}
		}
		return []keymap.Layer{{Actions: acts}}
	}
	a, err := keymap.New([]keys.SourceCode{srcEsc, src1}, layer(2))
	require.NoError(t, err)
	b, err := keymap.New([]keys.SourceCode{srcEsc, src1}, layer(2))
	require.NoError(t, err)
	c, err := keymap.New([]keys.SourceCode{src1, srcEsc}, layer(2))
	require.NoError(t, err)

	assert.True(t, a.SameSource(b))
	assert.False(t, a.SameSource(c))
	assert.False(t, a.SameSource(nil))
}
