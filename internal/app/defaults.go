package app

import (
	"fmt"
	"os"
	"path/filepath"

	"romplestiltskin/internal/config"
)

// Defaults are the resolved locations a run starts from, before the config
// file is read. ROMPLE_CONFIG_PATH and ROMPLE_HOME override the XDG-style
// ~/.config/romple.toml and ~/.local/share/romple.
type Defaults struct {
	ConfigPath string
	BaseDir    string
}

// ResolveDefaults reads the environment overrides and falls back to paths
// under the user's home directory. The home directory is only consulted
// when an override is absent.
func ResolveDefaults() (Defaults, error) {
	d := Defaults{
		ConfigPath: os.Getenv("ROMPLE_CONFIG_PATH"),
		BaseDir:    os.Getenv("ROMPLE_HOME"),
	}
	if d.ConfigPath != "" && d.BaseDir != "" {
		return d, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Defaults{}, fmt.Errorf("cannot determine home directory: %w", err)
	}
	if d.ConfigPath == "" {
		d.ConfigPath = filepath.Join(home, ".config", "romple.toml")
	}
	if d.BaseDir == "" {
		d.BaseDir = filepath.Join(home, ".local", "share", "romple")
	}
	return d, nil
}

// Config builds the default configuration rooted at BaseDir, with the data,
// log, and DAT directories underneath it.
func (d Defaults) Config() *config.Config {
	return config.NewConfig(d.BaseDir)
}
