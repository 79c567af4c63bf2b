package device

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/holoplot/go-evdev"
	"github.com/karalabe/hid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleimann/camel-keys/internal/keys"
)

var t0 = time.Date(2024, 3, 6, 7, 26, 22, 500_000_000, time.UTC)

func raw(typ evdev.EvType, code evdev.EvCode, value int32) evdev.InputEvent {
	return evdev.InputEvent{Time: syscall.NsecToTimeval(t0.UnixNano()), Type: typ, Code: code, Value: value}
}

func TestNewEvent(t *testing.T) {
	tests := []struct {
		name string
		raw  evdev.InputEvent
		want Kind
	}{
		{"press", raw(evdev.EV_KEY, evdev.KEY_A, 1), KeyDown},
		{"release", raw(evdev.EV_KEY, evdev.KEY_A, 0), KeyUp},
		{"repeat", raw(evdev.EV_KEY, evdev.KEY_A, 2), KeyRepeat},
		{"sync", raw(evdev.EV_SYN, evdev.SYN_REPORT, 0), Sync},
		{"scan code", raw(evdev.EV_MSC, evdev.MSC_SCAN, 0x70004), Other},
		{"led", raw(evdev.EV_LED, evdev.LED_CAPSL, 1), Other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewEvent(tt.raw)
			assert.Equal(t, tt.want, ev.Kind)
			assert.True(t, ev.Time.Equal(t0), "time %s", ev.Time)
		})
	}
}

func TestEventKey(t *testing.T) {
	ev := NewEvent(raw(evdev.EV_KEY, evdev.KEY_CAPSLOCK, 1))
	require.True(t, ev.IsTransition())
	key := ev.Key()
	assert.Equal(t, keys.SourceCode(evdev.KEY_CAPSLOCK), key.Code)
	assert.True(t, key.Pressed)
	assert.True(t, key.Time.Equal(t0))

	assert.False(t, NewEvent(raw(evdev.EV_KEY, evdev.KEY_A, 2)).IsTransition())
}

type fakeSource struct {
	mu     sync.Mutex
	events []evdev.InputEvent
	block  chan struct{}
	closed bool
}

func newFakeSource(events ...evdev.InputEvent) *fakeSource {
	return &fakeSource{events: events, block: make(chan struct{})}
}

func (f *fakeSource) ReadOne() (*evdev.InputEvent, error) {
	f.mu.Lock()
	if len(f.events) > 0 {
		ev := f.events[0]
		f.events = f.events[1:]
		f.mu.Unlock()
		return &ev, nil
	}
	f.mu.Unlock()
	<-f.block
	return nil, io.EOF
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.block)
	}
	return nil
}

func TestReaderReadEvents(t *testing.T) {
	src := newFakeSource(
		raw(evdev.EV_KEY, evdev.KEY_A, 1),
		raw(evdev.EV_SYN, evdev.SYN_REPORT, 0),
		raw(evdev.EV_KEY, evdev.KEY_A, 0),
	)
	r := NewReader(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, 8)
	done := make(chan error, 1)
	go func() { done <- r.ReadEvents(ctx, events) }()

	var kinds []Kind
	for range 3 {
		select {
		case ev := <-events:
			kinds = append(kinds, ev.Kind)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out reading events")
		}
	}
	assert.Equal(t, []Kind{KeyDown, Sync, KeyUp}, kinds)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadEvents did not return after cancel")
	}
	assert.True(t, src.closed, "cancel must close the device")
}

func TestReaderReadError(t *testing.T) {
	src := newFakeSource()
	r := NewReader(src, nil)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	err := r.ReadEvents(context.Background(), make(chan Event))
	require.Error(t, err)
	assert.ErrorIs(t, err, io.EOF)
}

type fakeWriter struct {
	events []evdev.InputEvent
	fail   error
	closed bool
}

func (f *fakeWriter) WriteOne(ev *evdev.InputEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestVirtualKeyboardWriteKey(t *testing.T) {
	w := &fakeWriter{}
	v := newVirtualKeyboard(w, []keys.OutputCode{evdev.KEY_ESC, evdev.KEY_A, evdev.KEY_ESC}, nil)
	assert.Equal(t, []keys.OutputCode{evdev.KEY_ESC, evdev.KEY_A}, v.Codes())

	require.NoError(t, v.WriteKey(keys.OutputEvent{Code: evdev.KEY_ESC, Pressed: true, Time: t0}))
	require.NoError(t, v.WriteKey(keys.OutputEvent{Code: evdev.KEY_ESC, Pressed: false, Time: t0}))
	// Not declared: dropped.
	require.NoError(t, v.WriteKey(keys.OutputEvent{Code: evdev.KEY_Z, Pressed: true, Time: t0}))

	require.Len(t, w.events, 4)
	assert.Equal(t, evdev.EvType(evdev.EV_KEY), w.events[0].Type)
	assert.Equal(t, evdev.EvCode(evdev.KEY_ESC), w.events[0].Code)
	assert.Equal(t, int32(1), w.events[0].Value)
	assert.Equal(t, evdev.EvType(evdev.EV_SYN), w.events[1].Type)
	assert.Equal(t, evdev.EvCode(evdev.SYN_REPORT), w.events[1].Code)
	assert.Equal(t, int32(0), w.events[2].Value)
}

func TestVirtualKeyboardWriteRaw(t *testing.T) {
	w := &fakeWriter{}
	v := newVirtualKeyboard(w, nil, nil)

	require.NoError(t, v.WriteRaw(NewEvent(raw(evdev.EV_MSC, evdev.MSC_SCAN, 4))))
	require.NoError(t, v.WriteRaw(NewEvent(raw(evdev.EV_SYN, evdev.SYN_REPORT, 0))))

	require.Len(t, w.events, 2)
	assert.Equal(t, evdev.EvType(evdev.EV_MSC), w.events[0].Type)
	assert.Equal(t, evdev.EvType(evdev.EV_SYN), w.events[1].Type)
}

func TestVirtualKeyboardClose(t *testing.T) {
	w := &fakeWriter{}
	v := newVirtualKeyboard(w, []keys.OutputCode{evdev.KEY_A}, nil)
	require.NoError(t, v.Close())
	require.NoError(t, v.Close())
	assert.True(t, w.closed)

	err := v.WriteKey(keys.OutputEvent{Code: evdev.KEY_A, Pressed: true, Time: t0})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestVirtualKeyboardWriteError(t *testing.T) {
	boom := errors.New("boom")
	v := newVirtualKeyboard(&fakeWriter{fail: boom}, []keys.OutputCode{evdev.KEY_A}, nil)
	err := v.WriteKey(keys.OutputEvent{Code: evdev.KEY_A, Pressed: true, Time: t0})
	assert.ErrorIs(t, err, boom)
}

func TestIsKeyboard(t *testing.T) {
	assert.True(t, isKeyboard([]evdev.EvCode{evdev.KEY_ESC, evdev.KEY_A, evdev.KEY_Z, evdev.KEY_SPACE, evdev.KEY_ENTER}))
	assert.False(t, isKeyboard([]evdev.EvCode{evdev.BTN_LEFT, evdev.BTN_RIGHT}))
	assert.False(t, isKeyboard([]evdev.EvCode{evdev.KEY_VOLUMEUP, evdev.KEY_ENTER}))
}

func TestEnrichAndSort(t *testing.T) {
	devices := []DeviceInfo{
		{Path: "/dev/input/event9", Name: "Power Button"},
		{Path: "/dev/input/event5", Name: "Keychron K2", VendorID: 0x05ac, ProductID: 0x024f, Keyboard: true},
		{Path: "/dev/input/event2", Name: "AT Translated Set 2 keyboard", VendorID: 0x0001, ProductID: 0x0001, Keyboard: true},
	}
	enrich(devices, []hid.DeviceInfo{
		{VendorID: 0x05ac, ProductID: 0x024f, Manufacturer: "Keychron", Product: "Keychron K2 HID", Serial: "K2-1"},
	})
	sortDevices(devices)

	assert.Equal(t, "/dev/input/event2", devices[0].Path)
	assert.Equal(t, "/dev/input/event5", devices[1].Path)
	assert.Equal(t, "/dev/input/event9", devices[2].Path)

	assert.Equal(t, "Keychron", devices[1].Manufacturer)
	assert.Equal(t, "K2-1", devices[1].SerialNumber)
	assert.Equal(t, "Keychron K2 (Keychron Keychron K2 HID)", devices[1].Label())
	assert.Empty(t, devices[0].Manufacturer)
	assert.Equal(t, "AT Translated Set 2 keyboard", devices[0].Label())
}

func TestStablePath(t *testing.T) {
	dir := t.TempDir()
	byID := filepath.Join(dir, "by-id")
	require.NoError(t, os.Mkdir(byID, 0o755))

	event3 := filepath.Join(dir, "event3")
	event4 := filepath.Join(dir, "event4")
	event5 := filepath.Join(dir, "event5")
	for _, p := range []string{event3, event4, event5} {
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}
	require.NoError(t, os.Symlink(event3, filepath.Join(byID, "usb-Acme_Keyboard-event-if01")))
	require.NoError(t, os.Symlink(event3, filepath.Join(byID, "usb-Acme_Keyboard-event-kbd")))
	require.NoError(t, os.Symlink(event4, filepath.Join(byID, "usb-Acme_Mouse-event-mouse")))

	assert.Equal(t, filepath.Join(byID, "usb-Acme_Keyboard-event-kbd"), stablePath(byID, event3))
	assert.Equal(t, filepath.Join(byID, "usb-Acme_Mouse-event-mouse"), stablePath(byID, event4))
	assert.Equal(t, event5, stablePath(byID, event5))
	assert.Equal(t, "/nonexistent/event9", stablePath(byID, "/nonexistent/event9"))
}
