package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/pleimann/camel-keys/internal/device"
)

// ErrNotInteractive is returned by SelectDevice without a terminal.
var ErrNotInteractive = errors.New("interactive selection needs a terminal")

// deviceSelectModel wraps huh form in Bubble Tea for proper escape handling
type deviceSelectModel struct {
	form    *huh.Form
	aborted bool
}

func (m deviceSelectModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m deviceSelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.aborted = true
			return m, tea.Quit
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, tea.Quit
	}

	return m, cmd
}

func (m deviceSelectModel) View() string {
	if m.form.State == huh.StateCompleted {
		return ""
	}
	return m.form.View()
}

// SelectDevice lets the user pick an input device. It returns nil when the
// user cancels.
func SelectDevice(devices []device.DeviceInfo) (*device.DeviceInfo, error) {
	if len(devices) == 0 {
		return nil, fmt.Errorf("no devices to select from")
	}
	if !IsInteractive() {
		return nil, ErrNotInteractive
	}

	options := make([]huh.Option[int], len(devices))
	for i, d := range devices {
		options[i] = huh.NewOption(deviceLabel(d), i)
	}

	var selectedIndex int

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Select input device").
				Description("Choose the keyboard to remap (esc to cancel)").
				Options(options...).
				Value(&selectedIndex),
		),
	).WithTheme(customTheme()).WithShowHelp(false)

	p := tea.NewProgram(deviceSelectModel{form: form})
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	if finalModel.(deviceSelectModel).aborted {
		return nil, nil
	}

	return &devices[selectedIndex], nil
}

func deviceLabel(d device.DeviceInfo) string {
	return fmt.Sprintf("%s  %s  %s",
		DevicePathStyle.Render(d.Path),
		DeviceIDStyle.Render(fmt.Sprintf("%04x:%04x", d.VendorID, d.ProductID)),
		d.Label(),
	)
}

// PrintDeviceList displays a styled list of input devices
func PrintDeviceList(w io.Writer, devices []device.DeviceInfo) {
	if len(devices) == 0 {
		fmt.Fprintln(w, Warning("No input devices found"))
		fmt.Fprintln(w, Muted("  Devices under /dev/input may need membership in the 'input' group"))
		return
	}

	keyboards := 0
	for _, d := range devices {
		if d.Keyboard {
			keyboards++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, Title("Input Devices"))
	fmt.Fprintln(w, Muted(fmt.Sprintf("Found %d device(s), %d keyboard(s)", len(devices), keyboards)))
	fmt.Fprintln(w)

	for _, d := range devices {
		printDevice(w, d)
	}
	fmt.Fprintln(w)
}

func printDevice(w io.Writer, d device.DeviceInfo) {
	details := []string{DeviceNameStyle.Render(d.Name)}
	if d.Manufacturer != "" {
		details = append(details, DeviceManufacturerStyle.Render("by "+d.Manufacturer))
	}
	if !d.Keyboard {
		details = append(details, Muted("(not a keyboard)"))
	}

	fmt.Fprintf(w, "  %s  %s  %s\n",
		DevicePathStyle.Render(d.Path),
		DeviceIDStyle.Render(fmt.Sprintf("%04x:%04x", d.VendorID, d.ProductID)),
		strings.Join(details, " "),
	)
}

// PrintDeviceUpdated shows a success message after writing the device into
// the config.
func PrintDeviceUpdated(w io.Writer, configPath, devicePath string, created bool) {
	msg := "Device configuration updated"
	if created {
		msg = "Device configuration created"
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, Success(msg))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s\n", Muted("Config:"), configPath)
	fmt.Fprintf(w, "  %s %s\n", Muted("Device:"), DevicePathStyle.Render(devicePath))
	fmt.Fprintln(w)
}

// customTheme returns a custom huh theme matching our style palette
func customTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = t.Focused.Title.Foreground(ColorPrimary).Bold(true)
	t.Focused.Description = t.Focused.Description.Foreground(ColorMuted)
	t.Focused.SelectedOption = t.Focused.SelectedOption.Foreground(ColorPrimary)
	t.Focused.UnselectedOption = t.Focused.UnselectedOption.Foreground(lipgloss.Color("#F9FAFB"))
	t.Focused.SelectSelector = t.Focused.SelectSelector.Foreground(ColorPrimary)

	return t
}
