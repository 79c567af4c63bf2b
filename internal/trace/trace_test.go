package trace

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/holoplot/go-evdev"
	"github.com/pleimann/camel-keys/internal/action"
	"github.com/pleimann/camel-keys/internal/engine"
	"github.com/pleimann/camel-keys/internal/keymap"
	"github.com/pleimann/camel-keys/internal/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 6, 7, 26, 22, 0, time.UTC)

func at(ms int) time.Time { return start.Add(time.Duration(ms) * time.Millisecond) }

func testKeymap(t *testing.T) *keymap.Keymap {
	t.Helper()
	km, err := keymap.New(
		[]keys.SourceCode{evdev.KEY_CAPSLOCK, evdev.KEY_A},
		[]keymap.Layer{{Actions: []action.Action{
			action.HoldTap{Tap: action.Key(evdev.KEY_ESC), Hold: action.Key(evdev.KEY_LEFTCTRL), Timeout: 200 * time.Millisecond},
			action.Key(evdev.KEY_A),
		}}},
	)
	require.NoError(t, err)
	return km
}

func TestRecordAndRead(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	in := []keys.Event{
		keys.Down(evdev.KEY_CAPSLOCK, at(0)),
		keys.Down(evdev.KEY_A, at(40)),
		keys.Up(evdev.KEY_A, at(55)),
		keys.Up(evdev.KEY_CAPSLOCK, at(90)),
	}
	for _, ev := range in {
		require.NoError(t, rec.Record(ev))
	}

	first, _, _ := strings.Cut(buf.String(), "\n")
	assert.JSONEq(t, `{"code":"KEY_CAPSLOCK","pressed":true,"time_us":1709709982000000}`, first)

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestNilRecorder(t *testing.T) {
	var rec *Recorder
	assert.NoError(t, rec.Record(keys.Down(evdev.KEY_A, at(0))))
	assert.NoError(t, rec.Close())
}

func TestCreateAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	rec, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, rec.Record(keys.Down(evdev.KEY_A, at(1))))
	require.NoError(t, rec.Close())

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []keys.Event{keys.Down(evdev.KEY_A, at(1))}, got)
}

func TestReadErrors(t *testing.T) {
	_, err := Read(strings.NewReader("{\"code\":\"KEY_A\"}\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = Read(strings.NewReader(`{"code":"KEY_NOPE","pressed":true,"time_us":1}`))
	assert.ErrorIs(t, err, keys.ErrUnknownKey)
}

func TestReplay(t *testing.T) {
	events := []keys.Event{
		keys.Down(evdev.KEY_CAPSLOCK, at(0)),
		keys.Up(evdev.KEY_CAPSLOCK, at(50)),
		keys.Down(evdev.KEY_CAPSLOCK, at(100)),
	}
	out, err := Replay(testKeymap(t), events)
	require.NoError(t, err)

	// The last press never sees its release; the trailing deadline fires.
	assert.Equal(t, []keys.OutputEvent{
		{Code: evdev.KEY_ESC, Pressed: true, Time: at(50)},
		{Code: evdev.KEY_ESC, Pressed: false, Time: at(50)},
		{Code: evdev.KEY_LEFTCTRL, Pressed: true, Time: at(300)},
	}, out)
}

func TestReplayPolicies(t *testing.T) {
	events := []keys.Event{
		keys.Down(evdev.KEY_CAPSLOCK, at(0)),
		keys.Down(evdev.KEY_A, at(10)),
		keys.Up(evdev.KEY_A, at(20)),
		keys.Up(evdev.KEY_CAPSLOCK, at(30)),
	}
	eager, err := Replay(testKeymap(t), events)
	require.NoError(t, err)
	lazy, err := Replay(testKeymap(t), events, engine.WithPolicy(engine.Lazy))
	require.NoError(t, err)

	assert.Equal(t, keys.OutputCode(evdev.KEY_LEFTCTRL), eager[0].Code)
	assert.Equal(t, keys.OutputCode(evdev.KEY_A), lazy[0].Code)
}

func TestReplaySkipsUnmapped(t *testing.T) {
	out, err := Replay(testKeymap(t), []keys.Event{
		keys.Down(evdev.KEY_Z, at(0)),
		keys.Down(evdev.KEY_A, at(1)),
	})
	require.ErrorIs(t, err, engine.ErrUnmappedKey)
	assert.Equal(t, []keys.OutputEvent{{Code: evdev.KEY_A, Pressed: true, Time: at(1)}}, out)
}

func TestTextRoundTrip(t *testing.T) {
	out := []keys.OutputEvent{
		{Code: evdev.KEY_ESC, Pressed: true, Time: at(12)},
		{Code: evdev.KEY_ESC, Pressed: false, Time: start.Add(12500 * time.Microsecond)},
	}
	assert.Equal(t, "+KEY_ESC @12.000ms", FormatLine(out[0], start))
	assert.Equal(t, "-KEY_ESC @12.500ms", FormatLine(out[1], start))

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, out, start))
	got, err := ReadText(&buf, start)
	require.NoError(t, err)
	assert.Equal(t, out, got)
}

func TestParseLineErrors(t *testing.T) {
	for _, line := range []string{"", "KEY_A @1ms", "+KEY_A", "+KEY_A @xms", "+KEY_NOPE @1.000ms"} {
		_, err := ParseLine(line, start)
		assert.Error(t, err, line)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	err := WriteJSON(&buf, []keys.OutputEvent{
		{Code: evdev.KEY_LEFTCTRL, Pressed: true, Time: at(200)},
		{Code: evdev.KEY_LEFTCTRL, Pressed: false, Time: at(250)},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"code":"KEY_LEFTCTRL","pressed":true,"time_us":1709709982200000}`, lines[0])
	assert.JSONEq(t, `{"code":"KEY_LEFTCTRL","pressed":false,"time_us":1709709982250000}`, lines[1])
}
