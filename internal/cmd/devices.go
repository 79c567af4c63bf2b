package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pleimann/camel-keys/internal/config"
	"github.com/pleimann/camel-keys/internal/device"
	"github.com/pleimann/camel-keys/internal/ui"
)

// ListDevices prints the input devices on this machine.
type ListDevices struct {
	All bool `short:"a" help:"Include devices that are not keyboards"`
}

func (l *ListDevices) Run(w io.Writer) error {
	list := device.ListKeyboards
	if l.All {
		list = device.ListDevices
	}
	devices, err := list()
	if err != nil {
		return fmt.Errorf("failed to list input devices: %w", err)
	}
	ui.PrintDeviceList(w, devices)
	return nil
}

// SetDevice writes device.path into the config, creating a starter config
// when there is none.
type SetDevice struct {
	Path string `arg:"" optional:"" help:"Input device path; omit to pick one interactively" placeholder:"PATH"`
}

func (s *SetDevice) Run(w io.Writer, g *Globals) error {
	devicePath := s.Path
	if devicePath == "" {
		keyboards, err := device.ListKeyboards()
		if err != nil {
			return fmt.Errorf("failed to list input devices: %w", err)
		}
		if len(keyboards) == 0 {
			ui.PrintDeviceList(w, keyboards)
			return errors.New("no keyboards found")
		}

		selected, err := ui.SelectDevice(keyboards)
		if errors.Is(err, ui.ErrNotInteractive) {
			return fmt.Errorf("%w: pass the device path as an argument", err)
		}
		if err != nil {
			return err
		}
		if selected == nil {
			fmt.Fprintln(w, ui.Muted("Cancelled"))
			return nil
		}
		devicePath = selected.Path
	} else if _, err := os.Stat(devicePath); err != nil {
		return fmt.Errorf("input device %s: %w", devicePath, err)
	}

	configPath, err := g.ConfigPath()
	if err != nil {
		return err
	}
	return writeDevice(w, configPath, device.StablePath(devicePath))
}

func writeDevice(w io.Writer, configPath, devicePath string) error {
	created := !config.Exists(configPath)
	if created {
		if err := config.CreateDefaultConfig(configPath, devicePath); err != nil {
			return err
		}
	} else if err := config.UpdateDevicePath(configPath, devicePath); err != nil {
		return err
	}

	ui.PrintDeviceUpdated(w, configPath, devicePath, created)
	if created {
		ui.PrintNextSteps(w, configPath)
	}
	return nil
}
