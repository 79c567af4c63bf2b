package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/pleimann/camel-keys/internal/action"
	"github.com/pleimann/camel-keys/internal/capability"
	"github.com/pleimann/camel-keys/internal/keymap"
	"github.com/pleimann/camel-keys/internal/keys"
)

// RenderKeymap draws one row per source key with a column per layer and a
// final column listing every code the key can emit.
func RenderKeymap(km *keymap.Keymap, caps capability.Map) string {
	headers := []string{"key"}
	for li := range km.NumLayers() {
		l, _ := km.LayerFor(li)
		headers = append(headers, l.Name)
	}
	headers = append(headers, "emits")

	rows := make([][]string, km.Len())
	for i := range km.Len() {
		row := []string{km.SourceAt(i).ShortName()}
		for li := range km.NumLayers() {
			a, _ := km.ActionAt(li, i)
			row = append(row, describe(km, a))
		}
		row = append(row, codeList(caps.For(i)))
		rows[i] = row
	}

	last := len(headers) - 1
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(MutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return HeaderStyle
			case col == 0:
				return KeyStyle
			case col == last:
				return TransparentStyle
			case row >= 0 && row < len(rows) && rows[row][col] == "_":
				return TransparentStyle
			default:
				return CellStyle
			}
		})

	return t.String()
}

// PrintKeymap prints the keymap table followed by a capability summary.
func PrintKeymap(w io.Writer, configPath string, km *keymap.Keymap, caps capability.Map) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, Title("Keymap"), Muted(configPath))
	fmt.Fprintln(w, RenderKeymap(km, caps))
	fmt.Fprintln(w)

	all := caps.All()
	fmt.Fprintln(w, Success(fmt.Sprintf("%d key(s), %d layer(s), %d output code(s)", km.Len(), km.NumLayers(), len(all))))
	fmt.Fprintf(w, "  %s %s\n", Muted("Emits:"), codeList(all))
	fmt.Fprintln(w)
}

// describe renders a with layer names instead of indices.
func describe(km *keymap.Keymap, a action.Action) string {
	switch a := a.(type) {
	case action.Layer:
		return "layer(" + layerName(km, a.Index) + ")"
	case action.ToggleLayer:
		return "toggle(" + layerName(km, a.Index) + ")"
	case action.HoldTap:
		return fmt.Sprintf("tap-hold(%s, %s, %s)", describe(km, a.Tap), describe(km, a.Hold), a.Timeout)
	case nil:
		return ""
	default:
		return a.String()
	}
}

func layerName(km *keymap.Keymap, index int) string {
	l, err := km.LayerFor(index)
	if err != nil || l.Name == "" {
		return fmt.Sprint(index)
	}
	return l.Name
}

func codeList(codes []keys.OutputCode) string {
	if len(codes) == 0 {
		return "-"
	}
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = c.ShortName()
	}
	return strings.Join(names, " ")
}
