package capability_test

import (
	"slices"
	"testing"
	"time"

	"github.com/holoplot/go-evdev"
	"github.com/pleimann/camel-keys/internal/action"
	"github.com/pleimann/camel-keys/internal/capability"
	"github.com/pleimann/camel-keys/internal/keymap"
	"github.com/pleimann/camel-keys/internal/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oc(c int) keys.OutputCode { return keys.OutputCode(c) }
func key(c int) action.Action { return action.Key(oc(c)) }
func src(c int) keys.SourceCode { return keys.SourceCode(c) }

// Two layers over esc 1 2 3 4 caps: the second is Dvorak-ish, and caps
// is a tap-hold in one and a toggle in the other.
func testKeymap(t *testing.T) *keymap.Keymap {
	t.Helper()
	km, err := keymap.New(
		[]keys.SourceCode{src(evdev.KEY_ESC), src(evdev.KEY_1), src(evdev.KEY_2), src(evdev.KEY_3), src(evdev.KEY_4), src(evdev.KEY_CAPSLOCK)},
		[]keymap.Layer{
			{Name: "one", Actions: []action.Action{
				key(evdev.KEY_ESC), key(evdev.KEY_A), key(evdev.KEY_S), key(evdev.KEY_D), key(evdev.KEY_F),
				action.HoldTap{Tap: key(evdev.KEY_ESC), Hold: key(evdev.KEY_LEFTCTRL), Timeout: 200 * time.Millisecond},
			}},
			{Name: "two", Actions: []action.Action{
				key(evdev.KEY_ESC), key(evdev.KEY_A), key(evdev.KEY_O), key(evdev.KEY_E), key(evdev.KEY_U),
				action.HoldTap{Tap: action.ToggleLayer{Index: 1}, Hold: action.NoOp{}, Timeout: time.Second},
			}},
		},
	)
	require.NoError(t, err)
	return km
}

func TestCompute(t *testing.T) {
	m := capability.Compute(testKeymap(t))

	require.Equal(t, 6, m.Len())
	assert.Equal(t, []keys.OutputCode{oc(evdev.KEY_ESC)}, m.For(0))
	assert.Equal(t, []keys.OutputCode{oc(evdev.KEY_A)}, m.For(1))
	assert.Equal(t, []keys.OutputCode{oc(evdev.KEY_O), oc(evdev.KEY_S)}, m.For(2))
	assert.Equal(t, []keys.OutputCode{oc(evdev.KEY_ESC), oc(evdev.KEY_LEFTCTRL)}, m.For(5))

	assert.True(t, m.Contains(3, oc(evdev.KEY_E)))
	assert.False(t, m.Contains(3, oc(evdev.KEY_A)))
	assert.False(t, m.Contains(99, oc(evdev.KEY_A)))
	assert.Nil(t, m.For(-1))
}

func TestComputeEmptySets(t *testing.T) {
	km, err := keymap.New(
		[]keys.SourceCode{src(evdev.KEY_ESC), src(evdev.KEY_1)},
		[]keymap.Layer{
			{Actions: []action.Action{action.NoOp{}, action.Layer{Index: 1}}},
			{Actions: []action.Action{action.Trans{}, action.Trans{}}},
		},
	)
	require.NoError(t, err)

	m := capability.Compute(km)
	assert.Empty(t, m.For(0))
	assert.Empty(t, m.For(1))
	assert.Empty(t, m.All())
}

func TestComputeIsIdempotent(t *testing.T) {
	km := testKeymap(t)
	first := capability.Compute(km)
	second := capability.Compute(km)
	assert.True(t, first.Equal(second))
	assert.Equal(t, first, second)
}

func TestAll(t *testing.T) {
	m := capability.Compute(testKeymap(t))
	want := []keys.OutputCode{
		oc(evdev.KEY_ESC), oc(evdev.KEY_E), oc(evdev.KEY_O), oc(evdev.KEY_U),
		oc(evdev.KEY_LEFTCTRL), oc(evdev.KEY_A), oc(evdev.KEY_S), oc(evdev.KEY_D), oc(evdev.KEY_F),
	}
	assert.ElementsMatch(t, want, m.All())
	assert.True(t, slices.IsSorted(m.All()))
}

func TestCovers(t *testing.T) {
	full := capability.Compute(testKeymap(t))

	smaller, err := keymap.New(
		[]keys.SourceCode{src(evdev.KEY_ESC)},
		[]keymap.Layer{{Actions: []action.Action{key(evdev.KEY_F)}}},
	)
	require.NoError(t, err)
	other, err := keymap.New(
		[]keys.SourceCode{src(evdev.KEY_ESC)},
		[]keymap.Layer{{Actions: []action.Action{key(evdev.KEY_Z)}}},
	)
	require.NoError(t, err)

	assert.True(t, full.Covers(capability.Compute(smaller)))
	assert.False(t, full.Covers(capability.Compute(other)))
	assert.False(t, capability.Compute(smaller).Equal(full))
}

func TestWithin(t *testing.T) {
	m := capability.Compute(testKeymap(t))
	declared := append(m.All(), oc(evdev.KEY_Z))
	slices.Sort(declared)

	assert.True(t, m.Within(declared))
	assert.True(t, m.Within(m.All()))
	assert.False(t, m.Within(declared[1:]))
	assert.True(t, capability.Map{}.Within(nil))
}
