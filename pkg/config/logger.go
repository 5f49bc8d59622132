package config

import "fmt"

// LoggerConfig holds the settings the process-wide logger (pkg/logger) is
// initialized from; SetDefaults fills in info level and simple format,
// and an empty File means stderr. cmd/researchd takes these settings
// from its --log-level, --log-file and --log-format flags only; it does
// not read this struct, LOG_* environment variables, or a config
// document section for them.
type LoggerConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level,omitempty"`

	// File is a path to append logs to. Empty means stderr.
	File string `yaml:"file,omitempty"`

	// Format is "simple" (level + message), "verbose" (adds a
	// timestamp), or any other value, which falls back to slog's
	// standard encoding. Default: simple.
	Format string `yaml:"format,omitempty"`
}

// SetDefaults fills in the zero-value fields a deployment left unset.
func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Validate rejects an unrecognized Level; Format is intentionally
// unchecked since a custom value is a supported fallback, not an error.
func (c *LoggerConfig) Validate() error {
	if c.Level == "" {
		return nil
	}
	switch c.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", c.Level)
	}
}
