package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"github.com/pleimann/camel-keys/internal/configpaths"
	"github.com/pleimann/camel-keys/internal/engine"
	"github.com/pleimann/camel-keys/internal/keymap"
	"github.com/pleimann/camel-keys/internal/keys"
)

type Config struct {
	Device DeviceConfig  `yaml:"device" toml:"device"`
	Output OutputConfig  `yaml:"output" toml:"output"`
	Timing TimingConfig  `yaml:"timing" toml:"timing"`
	Source []string      `yaml:"source" toml:"source"`
	Layers []LayerConfig `yaml:"layers" toml:"layers"`
}

type DeviceConfig struct {
	Path string `yaml:"path,omitempty" toml:"path,omitempty"`
	Name string `yaml:"name,omitempty" toml:"name,omitempty"`
	Grab *bool  `yaml:"grab,omitempty" toml:"grab,omitempty"`
}

type OutputConfig struct {
	Name      string `yaml:"name" toml:"name"`
	VendorID  uint16 `yaml:"vendor_id" toml:"vendor_id"`
	ProductID uint16 `yaml:"product_id" toml:"product_id"`
}

type TimingConfig struct {
	HoldTapTimeoutMs int    `yaml:"hold_tap_timeout_ms" toml:"hold_tap_timeout_ms"`
	Policy           string `yaml:"policy" toml:"policy"`
}

type LayerConfig struct {
	Name string   `yaml:"name" toml:"name"`
	Keys []string `yaml:"keys" toml:"keys"`
}

const (
	DefaultOutputName       = "camel-keys"
	DefaultVendorID         = 0x4711
	DefaultProductID        = 0x0816
	DefaultHoldTapTimeoutMs = 200
)

// IsTOML reports whether path is read as TOML. Everything else is YAML.
func IsTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return parse(data, IsTOML(path))
}

func parse(data []byte, isTOML bool) (*Config, error) {
	var cfg Config
	var err error
	if isTOML {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if _, err := cfg.Keymap(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Source) == 0 {
		return errors.New("source is required")
	}
	if len(c.Layers) == 0 {
		return errors.New("at least one layer is required")
	}
	if c.Timing.HoldTapTimeoutMs <= 0 {
		return fmt.Errorf("timing.hold_tap_timeout_ms must be positive, got %d", c.Timing.HoldTapTimeoutMs)
	}
	if _, err := engine.ParsePolicy(c.Timing.Policy); err != nil {
		return fmt.Errorf("timing.policy: %w", err)
	}

	// Layer names are how layer actions refer to layers
	seen := make(map[string]bool)
	for _, l := range c.Layers {
		if seen[l.Name] {
			return fmt.Errorf("duplicate layer name: %s", l.Name)
		}
		seen[l.Name] = true
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Device.Grab == nil {
		grab := true
		c.Device.Grab = &grab
	}
	if c.Output.Name == "" {
		c.Output.Name = DefaultOutputName
	}
	if c.Output.VendorID == 0 {
		c.Output.VendorID = DefaultVendorID
	}
	if c.Output.ProductID == 0 {
		c.Output.ProductID = DefaultProductID
	}
	if c.Timing.HoldTapTimeoutMs == 0 {
		c.Timing.HoldTapTimeoutMs = DefaultHoldTapTimeoutMs
	}
	if c.Timing.Policy == "" {
		c.Timing.Policy = engine.Eager.String()
	}
	for i := range c.Layers {
		if c.Layers[i].Name == "" {
			c.Layers[i].Name = fmt.Sprintf("layer%d", i)
		}
	}
}

// ShouldGrab reports whether the input device is grabbed exclusively.
func (c *Config) ShouldGrab() bool {
	return c.Device.Grab == nil || *c.Device.Grab
}

// HoldTapTimeout is the timeout used by tap-hold actions that do not set one.
func (c *Config) HoldTapTimeout() time.Duration {
	return time.Duration(c.Timing.HoldTapTimeoutMs) * time.Millisecond
}

// Policy returns the configured interleaving policy.
func (c *Config) Policy() engine.Policy {
	p, _ := engine.ParsePolicy(c.Timing.Policy)
	return p
}

// Keymap builds the validated keymap described by Source and Layers.
func (c *Config) Keymap() (*keymap.Keymap, error) {
	source := make([]keys.SourceCode, len(c.Source))
	for i, name := range c.Source {
		code, err := keys.ParseSource(name)
		if err != nil {
			return nil, fmt.Errorf("source key %d: %w", i, err)
		}
		source[i] = code
	}

	p := &actionParser{
		layers:  make(map[string]int, len(c.Layers)),
		count:   len(c.Layers),
		timeout: c.HoldTapTimeout(),
	}
	for i, l := range c.Layers {
		p.layers[l.Name] = i
	}

	layers := make([]keymap.Layer, len(c.Layers))
	for li, l := range c.Layers {
		layers[li].Name = l.Name
		for ki, text := range l.Keys {
			a, err := p.parse(text)
			if err != nil {
				return nil, fmt.Errorf("layer %s key %d (%q): %w", l.Name, ki, text, err)
			}
			layers[li].Actions = append(layers[li].Actions, a)
		}
	}

	return keymap.New(source, layers)
}

// configSyntax locates the device section and its path key in one file
// format.
type configSyntax struct {
	header *regexp.Regexp
	// next matches the first line after the section that no longer
	// belongs to it.
	next    *regexp.Regexp
	path    *regexp.Regexp
	section string
	entry   string
}

var (
	yamlSyntax = configSyntax{
		header:  regexp.MustCompile(`(?m)^device:[ \t]*$`),
		next:    regexp.MustCompile(`(?m)^[^\s#]`),
		path:    regexp.MustCompile(`(?m)^([ \t]+path:[ \t]*).*$`),
		section: "device:",
		entry:   "  path: ",
	}
	tomlSyntax = configSyntax{
		header:  regexp.MustCompile(`(?m)^\[device\][ \t]*$`),
		next:    regexp.MustCompile(`(?m)^[ \t]*\[`),
		path:    regexp.MustCompile(`(?m)^([ \t]*path[ \t]*=[ \t]*).*$`),
		section: "[device]",
		entry:   "path = ",
	}
)

// deviceSection returns the byte range of the device section body, from the
// end of its header line to the start of the next section.
func (cs configSyntax) deviceSection(content string) (start, end int, ok bool) {
	loc := cs.header.FindStringIndex(content)
	if loc == nil {
		return 0, 0, false
	}
	start, end = loc[1], len(content)
	if n := cs.next.FindStringIndex(content[start:]); n != nil {
		end = start + n[0]
	}
	return start, end, true
}

// UpdateDevicePath sets device.path in a config file while preserving the
// rest of the file structure and comments. Keys outside the device section
// are left alone.
func UpdateDevicePath(path, devicePath string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	content := string(data)
	quoted := fmt.Sprintf("%q", devicePath)

	cs := yamlSyntax
	if IsTOML(path) {
		cs = tomlSyntax
	}

	if start, end, ok := cs.deviceSection(content); ok {
		body := content[start:end]
		if cs.path.MatchString(body) {
			body = replaceFirst(cs.path, body, "${1}"+escapeTemplate(quoted))
		} else {
			body = "\n" + cs.entry + quoted + body
		}
		content = content[:start] + body + content[end:]
	} else {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += "\n" + cs.section + "\n" + cs.entry + quoted + "\n"
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// replaceFirst expands template for the first match of re only.
func replaceFirst(re *regexp.Regexp, s, template string) string {
	m := re.FindStringSubmatchIndex(s)
	if m == nil {
		return s
	}
	var out []byte
	out = append(out, s[:m[0]]...)
	out = re.ExpandString(out, template, s, m)
	out = append(out, s[m[1]:]...)
	return string(out)
}

func escapeTemplate(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

// CreateDefaultConfig creates a new config file with a starter keymap for
// the given input device
func CreateDefaultConfig(path, devicePath string) error {
	tmpl := defaultYAML
	if IsTOML(path) {
		tmpl = defaultTOML
	}
	content := fmt.Sprintf(tmpl, devicePath)

	if err := configpaths.EnsureDir(path); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	return nil
}

// Exists checks if a config file exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

const defaultYAML = `# camel-keys configuration

device:
  path: %q
  grab: true

output:
  name: camel-keys

timing:
  hold_tap_timeout_ms: 200
  policy: eager

# Keys intercepted from the device, in the order every layer uses.
source: [esc, caps, h, j, k, l, spc]

layers:
  - name: base
    keys: [esc, "tap-hold(esc, lctl)", h, j, k, l, "tap-hold(spc, layer(nav))"]
  - name: nav
    keys: [_, _, left, down, up, right, _]
`

const defaultTOML = `# camel-keys configuration

source = ["esc", "caps", "h", "j", "k", "l", "spc"]

[device]
path = %q
grab = true

[output]
name = "camel-keys"

[timing]
hold_tap_timeout_ms = 200
policy = "eager"

[[layers]]
name = "base"
keys = ["esc", "tap-hold(esc, lctl)", "h", "j", "k", "l", "tap-hold(spc, layer(nav))"]

[[layers]]
name = "nav"
keys = ["_", "_", "left", "down", "up", "right", "_"]
`
