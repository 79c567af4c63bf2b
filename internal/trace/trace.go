// Package trace records physical key events to JSON lines and replays them
// through an engine offline.
package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pleimann/camel-keys/internal/engine"
	"github.com/pleimann/camel-keys/internal/keymap"
	"github.com/pleimann/camel-keys/internal/keys"
)

// Record is one line of a trace file.
type Record struct {
	Code    string `json:"code"`
	Pressed bool   `json:"pressed"`
	TimeUS  int64  `json:"time_us"`
}

// Recorder appends physical events to a trace. A nil *Recorder records
// nothing, so callers never need to check.
type Recorder struct {
	mu  sync.Mutex
	enc *json.Encoder
	c   io.Closer
}

// NewRecorder writes records to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: json.NewEncoder(w)}
}

// Create truncates path and returns a recorder writing to it.
func Create(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace: %w", err)
	}
	r := NewRecorder(f)
	r.c = f
	return r, nil
}

// Record appends ev.
func (r *Recorder) Record(ev keys.Event) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(Record{
		Code:    ev.Code.String(),
		Pressed: ev.Pressed,
		TimeUS:  ev.Time.UnixMicro(),
	})
}

// Close closes the underlying file when the recorder owns one.
func (r *Recorder) Close() error {
	if r == nil || r.c == nil {
		return nil
	}
	return r.c.Close()
}

// Read parses a trace. Blank lines are skipped; errors name the line.
func Read(rd io.Reader) ([]keys.Event, error) {
	var events []keys.Event
	sc := bufio.NewScanner(rd)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("trace line %d: %w", line, err)
		}
		code, err := keys.ParseSource(rec.Code)
		if err != nil {
			return nil, fmt.Errorf("trace line %d: %w", line, err)
		}
		events = append(events, keys.Event{
			Code:    code,
			Pressed: rec.Pressed,
			Time:    time.UnixMicro(rec.TimeUS).UTC(),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return events, nil
}

// ReadFile reads the trace at path.
func ReadFile(path string) ([]keys.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Replay feeds events through a fresh engine for km, fires every remaining
// deadline, and returns the outputs in emission order. Events for keys the
// keymap does not map are skipped and reported in the joined error.
func Replay(km *keymap.Keymap, events []keys.Event, opts ...engine.Option) ([]keys.OutputEvent, error) {
	var out []keys.OutputEvent
	eng := engine.New(km, engine.SinkFunc(func(ev keys.OutputEvent) {
		out = append(out, ev)
	}), opts...)

	var errs []error
	for _, ev := range events {
		if err := eng.Process(ev); err != nil {
			errs = append(errs, err)
		}
	}
	for {
		deadline, ok := eng.NextDeadline()
		if !ok {
			break
		}
		eng.Advance(deadline)
	}
	return out, errors.Join(errs...)
}

// WriteJSON writes output events as JSON lines in the same shape as a trace.
func WriteJSON(w io.Writer, events []keys.OutputEvent) error {
	enc := json.NewEncoder(w)
	for _, ev := range events {
		err := enc.Encode(Record{
			Code:    ev.Code.String(),
			Pressed: ev.Pressed,
			TimeUS:  ev.Time.UnixMicro(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
