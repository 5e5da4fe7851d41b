package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rescale/webup/internal/constants"
)

// ConfigDirectory returns the per-user configuration directory.
//
// Locations:
//   - Windows: %APPDATA%\webup
//   - Unix: ~/.config/webup
func ConfigDirectory() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", fmt.Errorf("failed to get home directory: %w", herr)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, constants.AppName), nil
}

// DefaultConfigPath returns the default path for the config file.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config"), nil
}

// LogDirectory returns the directory used for log files when `[logging] file`
// is set to a bare file name.
func LogDirectory() string {
	dir, err := ConfigDirectory()
	if err != nil {
		return filepath.Join(os.TempDir(), constants.AppName+"-logs")
	}
	return filepath.Join(dir, "logs")
}

// ResolveLogFile turns the configured log file into a path. Bare names are
// placed in LogDirectory; anything with a separator is used as given.
func ResolveLogFile(name string) string {
	if name == "" {
		return ""
	}
	if filepath.Base(name) == name {
		return filepath.Join(LogDirectory(), name)
	}
	return name
}
