package config

import "time"

// ProcessConfig groups process-level settings, distinct from the strategy
// store's GlobalSettings which are read from the durable store.
// DefaultProcessConfig supplies baseline values; cmd/researchd reads its
// own command-line flags and does not build a ProcessConfig.
type ProcessConfig struct {
	// StoreBackend selects how the durable strategy/settings store is
	// reached: "postgres" for the primary production backend, or one of
	// the config.BackendType values for a local/dev document store.
	StoreBackend string

	// StoreDSN is the Postgres connection string when StoreBackend is
	// "postgres", or the Loader path/key otherwise.
	StoreDSN string

	StoreEndpoints []string

	Logger LoggerConfig

	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint (e.g. ":9090").
	MetricsAddr string

	// RequestTimeout is the default request-wide deadline when a caller
	// does not supply one.
	RequestTimeout time.Duration

	// MaxForeachConcurrency bounds the degree of parallelism for foreach
	// and strategy-level fan-out.
	MaxForeachConcurrency int
}

// DefaultProcessConfig returns baseline values applied before flags/env
// overrides.
func DefaultProcessConfig() ProcessConfig {
	return ProcessConfig{
		StoreBackend:          "file",
		MetricsAddr:           ":9090",
		RequestTimeout:        3 * time.Minute,
		MaxForeachConcurrency: 4,
		Logger: LoggerConfig{
			Level:  "info",
			Format: "simple",
		},
	}
}
