package trace

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pleimann/camel-keys/internal/keys"
)

// FormatLine renders an output event relative to start, e.g. "+KEY_A @12.000ms".
func FormatLine(ev keys.OutputEvent, start time.Time) string {
	sign := "-"
	if ev.Pressed {
		sign = "+"
	}
	ms := float64(ev.Time.Sub(start).Microseconds()) / 1000
	return fmt.Sprintf("%s%s @%.3fms", sign, ev.Code, ms)
}

// WriteText writes one FormatLine per event.
func WriteText(w io.Writer, events []keys.OutputEvent, start time.Time) error {
	bw := bufio.NewWriter(w)
	for _, ev := range events {
		if _, err := fmt.Fprintln(bw, FormatLine(ev, start)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ParseLine is the inverse of FormatLine.
func ParseLine(line string, start time.Time) (keys.OutputEvent, error) {
	line = strings.TrimSpace(line)
	if len(line) < 2 || (line[0] != '+' && line[0] != '-') {
		return keys.OutputEvent{}, fmt.Errorf("malformed output line %q", line)
	}
	name, offset, ok := strings.Cut(line[1:], " @")
	if !ok || !strings.HasSuffix(offset, "ms") {
		return keys.OutputEvent{}, fmt.Errorf("malformed output line %q", line)
	}
	code, err := keys.ParseOutput(name)
	if err != nil {
		return keys.OutputEvent{}, err
	}
	ms, err := strconv.ParseFloat(strings.TrimSuffix(offset, "ms"), 64)
	if err != nil {
		return keys.OutputEvent{}, fmt.Errorf("malformed offset in %q: %w", line, err)
	}
	return keys.OutputEvent{
		Code:    code,
		Pressed: line[0] == '+',
		Time:    start.Add(time.Duration(math.Round(ms*1000)) * time.Microsecond),
	}, nil
}

// ReadText parses lines written by WriteText.
func ReadText(r io.Reader, start time.Time) ([]keys.OutputEvent, error) {
	var events []keys.OutputEvent
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		ev, err := ParseLine(sc.Text(), start)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, sc.Err()
}
