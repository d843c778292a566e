package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Loaded is the effective startup configuration.
type Loaded struct {
	Config *Config
	// Source is the file that was read, empty when running on defaults.
	Source string
	// Clamped lists every value Sanitize had to adjust.
	Clamped []string
}

// Load resolves the startup configuration: defaults, then the config file
// (--config or the first standard location), then flag overrides. The result
// is sanitized; adjustments are reported in Clamped so the caller can log
// them once the logger is up.
func Load() (*Loaded, error) {
	cfg := Default()

	source := ConfigPath()
	if source == "" {
		source = findConfigFile()
	}
	if source != "" {
		if err := loadFromFile(cfg, source); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", source, err)
		}
	}

	applyFlags(cfg)

	clean, notes := cfg.Sanitize()
	return &Loaded{Config: clean, Source: source, Clamped: notes}, nil
}

// LoadFile reads defaults overlaid with a single YAML file, without flags or
// sanitizing.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := loadFromFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	return cfg, nil
}

func findConfigFile() string {
	candidates := []string{
		"./proxisense.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "ProxiSense")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "ProxiSense")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "proxisense")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "proxisense")
	}
}

// loadFromFile merges a YAML file over cfg. Unknown keys are rejected: a
// misspelled threshold would otherwise leave the default silently in force.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
