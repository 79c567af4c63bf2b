package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pleimann/camel-keys/internal/action"
	"github.com/pleimann/camel-keys/internal/keys"
)

var (
	// ErrSyntax is returned for malformed action text.
	ErrSyntax = errors.New("syntax error")
	// ErrUnknownLayer is returned when a layer action names a missing layer.
	ErrUnknownLayer = errors.New("unknown layer")
)

// actionParser turns the textual action syntax into actions:
//
//	a, esc, lctl        Output
//	_                   Trans
//	XX                  NoOp
//	layer(nav)          Layer, by name or index
//	toggle(nav)         ToggleLayer
//	tap-hold(t, h[, d]) HoldTap; d is a duration like 150ms or plain milliseconds
type actionParser struct {
	layers  map[string]int
	count   int
	timeout time.Duration
}

func (p *actionParser) parse(text string) (action.Action, error) {
	s := strings.TrimSpace(text)
	switch {
	case s == "":
		return nil, fmt.Errorf("%w: empty action", ErrSyntax)
	case s == "_":
		return action.Trans{}, nil
	case strings.EqualFold(s, "XX"):
		return action.NoOp{}, nil
	}

	name, args, isCall, err := splitCall(s)
	if err != nil {
		return nil, err
	}
	if !isCall {
		code, err := keys.ParseOutput(s)
		if err != nil {
			return nil, err
		}
		return action.Key(code), nil
	}

	switch strings.ToLower(name) {
	case "layer":
		idx, err := p.layerArg(name, args)
		if err != nil {
			return nil, err
		}
		return action.Layer{Index: idx}, nil
	case "toggle", "toggle-layer":
		idx, err := p.layerArg(name, args)
		if err != nil {
			return nil, err
		}
		return action.ToggleLayer{Index: idx}, nil
	case "tap-hold", "taphold":
		return p.tapHold(args)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrSyntax, name)
	}
}

func (p *actionParser) layerArg(name string, args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: %s takes one layer, got %d arguments", ErrSyntax, name, len(args))
	}
	ref := args[0]
	if idx, ok := p.layers[ref]; ok {
		return idx, nil
	}
	if idx, err := strconv.Atoi(ref); err == nil {
		if idx < 0 || idx >= p.count {
			return 0, fmt.Errorf("%w: %d", action.ErrLayerOutOfRange, idx)
		}
		return idx, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLayer, ref)
}

func (p *actionParser) tapHold(args []string) (action.Action, error) {
	if len(args) != 2 && len(args) != 3 {
		return nil, fmt.Errorf("%w: tap-hold takes tap, hold and an optional timeout, got %d arguments", ErrSyntax, len(args))
	}
	tap, err := p.parse(args[0])
	if err != nil {
		return nil, fmt.Errorf("tap: %w", err)
	}
	hold, err := p.parse(args[1])
	if err != nil {
		return nil, fmt.Errorf("hold: %w", err)
	}
	timeout := p.timeout
	if len(args) == 3 {
		if timeout, err = parseTimeout(args[2]); err != nil {
			return nil, err
		}
	}
	return action.HoldTap{Tap: tap, Hold: hold, Timeout: timeout}, nil
}

func parseTimeout(s string) (time.Duration, error) {
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: timeout %q", ErrSyntax, s)
	}
	return d, nil
}

// splitCall splits "name(a, b(c, d))" into name and its top-level
// arguments. Plain names report isCall false.
func splitCall(s string) (name string, args []string, isCall bool, err error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		if strings.ContainsAny(s, "),") {
			return "", nil, false, fmt.Errorf("%w: unexpected character in %q", ErrSyntax, s)
		}
		return s, nil, false, nil
	}
	if open == 0 || !strings.HasSuffix(s, ")") {
		return "", nil, false, fmt.Errorf("%w: malformed call %q", ErrSyntax, s)
	}

	name = strings.TrimSpace(s[:open])
	body := s[open+1 : len(s)-1]
	depth, start := 0, 0
	for i, r := range body {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return "", nil, false, fmt.Errorf("%w: unbalanced parentheses in %q", ErrSyntax, s)
			}
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(body[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return "", nil, false, fmt.Errorf("%w: unbalanced parentheses in %q", ErrSyntax, s)
	}
	if last := strings.TrimSpace(body[start:]); last != "" || len(args) > 0 {
		args = append(args, last)
	}
	return name, args, true, nil
}
