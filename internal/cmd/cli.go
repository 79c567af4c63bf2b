// Package cmd holds the kong command tree.
package cmd

import (
	"fmt"
	"io"

	"github.com/pleimann/camel-keys/internal/configpaths"
	"github.com/pleimann/camel-keys/internal/ui"
)

// Version is set at build time.
var Version = "0.1.0"

// CLI is the root command.
type CLI struct {
	Globals `embed:""`

	Run         Run         `cmd:"" default:"withargs" help:"Remap the configured keyboard (default)"`
	Check       Check       `cmd:"" help:"Validate the config and show the keymap"`
	ListDevices ListDevices `cmd:"" name:"list-devices" help:"List input devices"`
	SetDevice   SetDevice   `cmd:"" name:"set-device" help:"Write the input device into the config"`
	Replay      Replay      `cmd:"" help:"Run a recorded trace through the keymap"`
	Version     VersionCmd  `cmd:"" help:"Print version and exit"`
}

// Globals are the flags shared by every command.
type Globals struct {
	Config    string    `help:"Keymap configuration file (yaml or toml)" type:"path" placeholder:"FILE" env:"CAMEL_KEYS_CONFIG"`
	CLIConfig string    `name:"cli-config" help:"File with default flags (yaml or toml)" type:"path" placeholder:"FILE" env:"CAMEL_KEYS_CLI_CONFIG"`
	Log       LogConfig `embed:"" prefix:"log."`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `help:"Log level" default:"info" enum:"trace,debug,info,warn,error" env:"CAMEL_KEYS_LOG_LEVEL"`
	File  string `help:"Also write logs to this file" type:"path" placeholder:"FILE" env:"CAMEL_KEYS_LOG_FILE"`
}

// ConfigPath returns --config, or the default keymap location.
func (g *Globals) ConfigPath() (string, error) {
	if g.Config != "" {
		return g.Config, nil
	}
	path, err := configpaths.DefaultKeymapPath()
	if err != nil {
		return "", fmt.Errorf("failed to resolve default config path: %w", err)
	}
	return path, nil
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (v *VersionCmd) Run(w io.Writer) error {
	ui.PrintVersion(w, Version)
	return nil
}
