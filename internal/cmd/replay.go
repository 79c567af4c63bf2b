package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pleimann/camel-keys/internal/config"
	"github.com/pleimann/camel-keys/internal/engine"
	"github.com/pleimann/camel-keys/internal/keys"
	"github.com/pleimann/camel-keys/internal/trace"
)

// ErrReplayMismatch is returned when replay output differs from --expect.
var ErrReplayMismatch = errors.New("replay output differs from expected")

// Replay runs a recorded trace through the configured keymap offline.
type Replay struct {
	Trace  string `arg:"" type:"existingfile" help:"Trace written by run --record"`
	JSON   bool   `help:"Print outputs as JSON lines instead of text"`
	Policy string `help:"Override timing.policy (eager or lazy)" placeholder:"POLICY"`
	Expect string `help:"Compare against a text output log and fail on differences" type:"existingfile" placeholder:"FILE"`
}

func (r *Replay) Run(w io.Writer, g *Globals, logger *slog.Logger) error {
	path, err := g.ConfigPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}
	km, err := cfg.Keymap()
	if err != nil {
		return err
	}

	policy := cfg.Policy()
	if r.Policy != "" {
		if policy, err = engine.ParsePolicy(r.Policy); err != nil {
			return err
		}
	}

	events, err := trace.ReadFile(r.Trace)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("trace %s is empty", r.Trace)
	}

	out, err := trace.Replay(km, events, engine.WithPolicy(policy), engine.WithLogger(logger))
	if err != nil {
		logger.Warn("some trace events were skipped", "error", err)
	}

	start := events[0].Time
	if r.Expect != "" {
		return compareOutput(r.Expect, out, start)
	}
	if r.JSON {
		return trace.WriteJSON(w, out)
	}
	return trace.WriteText(w, out, start)
}

func compareOutput(path string, got []keys.OutputEvent, start time.Time) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	want, err := trace.ReadText(f, start)
	if err != nil {
		return fmt.Errorf("expected output %s: %w", path, err)
	}

	for i := range max(len(got), len(want)) {
		switch {
		case i >= len(got):
			return fmt.Errorf("%w: missing %s", ErrReplayMismatch, trace.FormatLine(want[i], start))
		case i >= len(want):
			return fmt.Errorf("%w: unexpected %s", ErrReplayMismatch, trace.FormatLine(got[i], start))
		case !sameOutput(got[i], want[i]):
			return fmt.Errorf("%w: line %d: got %s, want %s", ErrReplayMismatch, i+1,
				trace.FormatLine(got[i], start), trace.FormatLine(want[i], start))
		}
	}
	return nil
}

func sameOutput(a, b keys.OutputEvent) bool {
	return a.Code == b.Code && a.Pressed == b.Pressed && a.Time.Equal(b.Time)
}
