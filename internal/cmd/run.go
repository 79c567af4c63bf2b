package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pleimann/camel-keys/internal/capability"
	"github.com/pleimann/camel-keys/internal/config"
	"github.com/pleimann/camel-keys/internal/device"
	"github.com/pleimann/camel-keys/internal/remap"
	"github.com/pleimann/camel-keys/internal/trace"
)

// Run remaps the configured keyboard until interrupted.
type Run struct {
	Device string `help:"Input device path, overrides device.path and device.name" placeholder:"PATH" env:"CAMEL_KEYS_DEVICE"`
	Watch  bool   `help:"Reload the keymap when the config file changes" env:"CAMEL_KEYS_WATCH"`
	Record string `help:"Record mapped key events to a trace file" type:"path" placeholder:"FILE"`
}

// Run is called by Kong when the run command is executed.
func (r *Run) Run(g *Globals, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.run(ctx, g, logger)
}

func (r *Run) run(ctx context.Context, g *Globals, logger *slog.Logger) error {
	path, err := g.ConfigPath()
	if err != nil {
		return err
	}

	var (
		cfg     *config.Config
		watcher *config.Watcher
	)
	if r.Watch {
		watcher, err = config.NewWatcher(path, logger)
		if err == nil {
			defer watcher.Stop()
			cfg = watcher.Get()
		}
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}

	km, err := cfg.Keymap()
	if err != nil {
		return err
	}

	opts := device.OpenOptions{
		Path: cfg.Device.Path,
		Name: cfg.Device.Name,
		Grab: cfg.ShouldGrab(),
	}
	if r.Device != "" {
		opts.Path, opts.Name = r.Device, ""
	}

	in, err := device.Open(opts, logger)
	if err != nil {
		return err
	}
	defer in.Close()

	// Keys outside the keymap are forwarded as they are, so the virtual
	// keyboard declares everything the physical one has as well.
	codes := append(capability.Compute(km).All(), in.KeyCodes()...)
	out, err := device.NewVirtualKeyboard(device.VirtualOptions{
		Name:      cfg.Output.Name,
		VendorID:  cfg.Output.VendorID,
		ProductID: cfg.Output.ProductID,
	}, codes, logger)
	if err != nil {
		return err
	}
	defer out.Close()

	var rec *trace.Recorder
	if r.Record != "" {
		if rec, err = trace.Create(r.Record); err != nil {
			return err
		}
		logger.Info("recording key events", "file", r.Record)
	}

	runner, err := remap.New(km, in, out,
		remap.WithLogger(logger),
		remap.WithPolicy(cfg.Policy()),
		remap.WithRecorder(rec),
	)
	if err != nil {
		rec.Close()
		return err
	}

	if watcher != nil {
		policy := cfg.Policy()
		watcher.OnReload(func(c *config.Config) {
			next, err := c.Keymap()
			if err != nil {
				logger.Error("reloaded config has no usable keymap", "error", err)
				return
			}
			if c.Policy() != policy {
				logger.Warn("timing.policy changes need a restart", "running", policy, "configured", c.Policy())
			}
			runner.Reload(next)
		})
		watcher.Start()
		logger.Info("watching config for changes", "path", watcher.Path())
	}

	logger.Info("remapping", "input", in.Path(), "name", in.Name(), "output", cfg.Output.Name)
	return runner.Run(ctx)
}
