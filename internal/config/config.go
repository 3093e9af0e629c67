// Package config handles content pipeline configuration loading and management.
package config

import "github.com/Faultbox/meshforge/pkg/geometry"

// Config holds all pipeline settings.
type Config struct {
	Import  geometry.ImportSettings `yaml:"import" toml:"import"`
	Output  OutputConfig            `yaml:"output" toml:"output"`
	Icon    IconConfig              `yaml:"icon" toml:"icon"`
	Hash    HashConfig              `yaml:"hash" toml:"hash"`
	Logging LoggingConfig           `yaml:"logging" toml:"logging"`
}

// OutputConfig holds asset writing settings.
type OutputConfig struct {
	Dir          string `yaml:"dir" toml:"dir"`                     // Default destination for imported assets
	LegacyFormat bool   `yaml:"legacy_format" toml:"legacy_format"` // Omit the payload version tag
	Workers      int    `yaml:"workers" toml:"workers"`             // Batch import parallelism
}

// IconConfig holds thumbnail generation settings.
type IconConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Size        int    `yaml:"size" toml:"size"`               // Final icon edge in pixels
	Supersample int    `yaml:"supersample" toml:"supersample"` // Render scale before downsampling
	Filter      string `yaml:"filter" toml:"filter"`           // "bilinear" or "catmullrom"
}

// HashConfig holds content hashing settings.
type HashConfig struct {
	Algorithm string `yaml:"algorithm" toml:"algorithm"` // "sha256" or "blake2b"
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Import: geometry.DefaultImportSettings(),
		Output: OutputConfig{
			Dir:          ".",
			LegacyFormat: false,
			Workers:      4,
		},
		Icon: IconConfig{
			Enabled:     true,
			Size:        90,
			Supersample: 4,
			Filter:      "bilinear",
		},
		Hash: HashConfig{
			Algorithm: "sha256",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
