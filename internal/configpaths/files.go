// Package configpaths locates camel-keys configuration files.
package configpaths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "camel-keys"

// DefaultConfigDir returns the platform-specific configuration directory.
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("AppData"); appdata != "" {
			return filepath.Join(appdata, appName), nil
		}
		return "", errors.New("AppData not set")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".config", appName), nil
		}
		return "", errors.New("HOME not set")
	}
}

// DefaultKeymapPath returns the keymap file used when --config is not given.
func DefaultKeymapPath() (string, error) {
	return DefaultNamedConfigPath("config", "yaml")
}

// DefaultNamedConfigPath returns the default file path for the given base
// name and format.
func DefaultNamedConfigPath(baseName, format string) (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	ext := "yaml"
	if format == "toml" {
		ext = "toml"
	}
	return filepath.Join(dir, baseName+"."+ext), nil
}

// EnsureDir ensures the directory for a given file path exists.
func EnsureDir(filePath string) error {
	return os.MkdirAll(filepath.Dir(filePath), 0o755)
}

// CLICandidatePaths builds the candidate paths for CLI default files per
// format. userPath, when set, comes first and is routed by extension.
func CLICandidatePaths(userPath string) (yamlPaths, tomlPaths []string) {
	add := func(slice *[]string, p string) { *slice = append(*slice, p) }

	if userPath != "" {
		switch filepath.Ext(userPath) {
		case ".toml":
			add(&tomlPaths, userPath)
		default:
			add(&yamlPaths, userPath)
		}
	}

	if dir, err := DefaultConfigDir(); err == nil {
		add(&yamlPaths, filepath.Join(dir, "cli.yaml"))
		add(&yamlPaths, filepath.Join(dir, "cli.yml"))
		add(&tomlPaths, filepath.Join(dir, "cli.toml"))
	}

	if runtime.GOOS != "windows" {
		etc := filepath.Join("/etc", appName)
		add(&yamlPaths, filepath.Join(etc, "cli.yaml"))
		add(&yamlPaths, filepath.Join(etc, "cli.yml"))
		add(&tomlPaths, filepath.Join(etc, "cli.toml"))
	}
	return
}
