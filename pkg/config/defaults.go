package config

import (
	"strings"
	"time"

	"github.com/nodewatch/plugind/internal/bytesize"
	"github.com/nodewatch/plugind/pkg/api"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyLimitsDefaults(&cfg.Limits)
	applyMetricsDefaults(&cfg.Metrics)
	applyAPIDefaults(&cfg.API)
	applyHistoryDefaults(&cfg.History)
	applyTelemetryDefaults(&cfg.Telemetry)

	if cfg.FunctionDefaultTimeout == 0 {
		cfg.FunctionDefaultTimeout = 10 * time.Second
	}
	if cfg.SerialFailureThreshold == 0 {
		cfg.SerialFailureThreshold = 5
	}

	// Note: no default for Directories - an empty list fails validation,
	// forcing an operator to configure at least one plugin search path.
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyLimitsDefaults sets parser limit defaults matching the netdata
// plugin API's documented constants.
func applyLimitsDefaults(cfg *LimitsConfig) {
	if cfg.LineMax == 0 {
		cfg.LineMax = bytesize.MustParseByteSize("16Ki")
	}
	if cfg.DeferredBufferCap == 0 {
		cfg.DeferredBufferCap = bytesize.MustParseByteSize("10Mi")
	}
}

// applyMetricsDefaults sets worker-telemetry metrics server defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyAPIDefaults sets control API server defaults. Mirrors api.APIConfig's
// own applyDefaults, since that method is private to the api package and the
// loaded Config owns the struct value here.
func applyAPIDefaults(cfg *api.APIConfig) {
	if cfg.Enabled == nil {
		enabled := true
		cfg.Enabled = &enabled
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
}

// applyHistoryDefaults sets the embedded event history store defaults.
func applyHistoryDefaults(cfg *HistoryConfig) {
	if cfg.Path == "" {
		cfg.Path = "/var/lib/plugind/history"
	}
}

// applyTelemetryDefaults sets OpenTelemetry tracing defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope continuous profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "goroutines"}
	}
}

// GetDefaultConfig returns a Config struct with all default values applied,
// seeded with a single plugin directory so the result passes Validate.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Directories: []string{"/usr/libexec/plugind/plugins.d"},
	}

	ApplyDefaults(cfg)
	return cfg
}
