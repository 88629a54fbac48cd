// Package config locates the proxy's settings file on disk. It is the
// narrow, out-of-scope "config file parsing and hot-reload" collaborator
// from spec.md §1/§6 — this package only finds the file; internal/settings
// parses it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// SettingsFileName is the name of the proxy's configuration file.
const SettingsFileName = ".my-reverse-proxy"

// FindSettingsFile resolves the settings file to read.
//
// If explicitPath is non-empty (the CLI's -config flag), it is used as-is.
// Otherwise it searches, in order: the current working directory, then
// $HOME, then the platform configuration directory (XDG_CONFIG_HOME /
// %APPDATA% / ~/.config), stopping at the first path that exists.
func FindSettingsFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		return explicitPath, nil
	}

	var candidates []string

	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, SettingsFileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, SettingsFileName))
	}
	if dir, err := getConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, SettingsFileName))
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("could not locate %s in any of: %v", SettingsFileName, candidates)
}

// getConfigDir returns the platform configuration directory, following the
// same convention as most CLI tools in the wild:
//   - Windows: %APPDATA%
//   - Unix-like: $XDG_CONFIG_HOME or $HOME/.config
func getConfigDir() (string, error) {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return xdgConfig, nil
	}
	if appData := os.Getenv("APPDATA"); appData != "" {
		return appData, nil
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config"), nil
	}
	return "", fmt.Errorf("no configuration directory available")
}
