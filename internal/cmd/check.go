package cmd

import (
	"fmt"
	"io"

	"github.com/pleimann/camel-keys/internal/capability"
	"github.com/pleimann/camel-keys/internal/config"
	"github.com/pleimann/camel-keys/internal/ui"
	"github.com/pleimann/camel-keys/internal/utils"
)

// Check validates the config without touching any device.
type Check struct {
	Quiet bool `short:"q" help:"Only report errors"`
}

func (c *Check) Run(w io.Writer, g *Globals) error {
	path, err := g.ConfigPath()
	if err != nil {
		return err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	km, err := cfg.Keymap()
	if err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}

	if c.Quiet {
		return nil
	}

	ui.PrintKeymap(w, path, km, capability.Compute(km))
	fmt.Fprintf(w, "  %s %s, timeout %s\n", ui.Muted("Policy:"), cfg.Policy(), cfg.HoldTapTimeout())
	if cfg.Device.Path == "" && cfg.Device.Name == "" {
		fmt.Fprintln(w, ui.Warning("No input device configured"), "run", ui.Code(utils.ExecutableName()+" set-device"))
	}
	return nil
}
