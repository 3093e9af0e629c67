package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/meshforge/pkg/contenthash"
)

// Validation errors.
var (
	ErrInvalidIconSize   = errors.New("icon size must be positive")
	ErrInvalidSample     = errors.New("icon supersample must be at least 1")
	ErrInvalidFilter     = errors.New("unknown icon filter")
	ErrInvalidWorkers    = errors.New("workers must be at least 1")
	ErrUnsupportedFormat = errors.New("unsupported config file format")
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Try to load from file (explicit path takes priority)
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	// Apply CLI flags (highest priority)
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	if c.Icon.Enabled {
		if c.Icon.Size <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidIconSize, c.Icon.Size)
		}
		if c.Icon.Supersample < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidSample, c.Icon.Supersample)
		}
		switch c.Icon.Filter {
		case "bilinear", "catmullrom":
		default:
			return fmt.Errorf("%w: %q", ErrInvalidFilter, c.Icon.Filter)
		}
	}
	if c.Output.Workers < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Output.Workers)
	}
	if _, err := contenthash.ByName(c.Hash.Algorithm); err != nil {
		return err
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	var candidates []string
	for _, dir := range []string{".", ConfigDir()} {
		candidates = append(candidates,
			filepath.Join(dir, "meshforge.yaml"),
			filepath.Join(dir, "meshforge.toml"),
		)
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
		return filepath.Join(home, "Library", "Application Support", "Meshforge")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Meshforge")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "meshforge")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "meshforge")
	}
}

// loadFromFile loads config from a YAML or TOML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".toml":
		return toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}
