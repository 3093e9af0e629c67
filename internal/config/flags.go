package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file (.yaml or .toml)")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagOut      = flag.String("out", "", "Output directory for assets")
	flagLegacy   = flag.Bool("legacy", false, "Write unversioned geometry payloads")
	flagWorkers  = flag.Int("workers", 0, "Batch import workers")
	flagIconSize = flag.Int("icon-size", 0, "Icon size in pixels")
	flagNoIcon   = flag.Bool("no-icon", false, "Skip icon generation")
	flagHash     = flag.String("hash", "", "Content hash algorithm (sha256, blake2b)")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the non-flag arguments.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagOut != "" {
		cfg.Output.Dir = *flagOut
	}
	if *flagLegacy {
		cfg.Output.LegacyFormat = true
	}
	if *flagWorkers > 0 {
		cfg.Output.Workers = *flagWorkers
	}
	if *flagIconSize > 0 {
		cfg.Icon.Size = *flagIconSize
	}
	if *flagNoIcon {
		cfg.Icon.Enabled = false
	}
	if *flagHash != "" {
		cfg.Hash.Algorithm = *flagHash
	}
}
