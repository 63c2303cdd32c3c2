package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	enabled  bool
	registry *prometheus.Registry
)

// InitRegistry enables process-wide metrics collection and creates the
// registry that every Prometheus-backed collector registers against.
// Call once at startup before constructing any collector.
func InitRegistry() *prometheus.Registry {
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return enabled
}

// GetRegistry returns the process-wide registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}
