package handlers

import (
	"net/http"
	"time"

	"github.com/nodewatch/plugind/internal/plugin"
)

// HealthHandler handles the control API's liveness endpoint.
//
// Liveness is intentionally independent of plugin state: the process is
// alive as long as it can answer HTTP, whether or not any plugin session is
// currently running.
type HealthHandler struct {
	supervisor *plugin.Supervisor
	startedAt  time.Time
}

// NewHealthHandler creates a new health handler. startedAt is reported back
// to CLI callers (e.g. `plugind status`) so they can compute uptime.
//
// The supervisor parameter may be nil, in which case the plugin count is
// reported as zero but liveness still succeeds.
func NewHealthHandler(supervisor *plugin.Supervisor, startedAt time.Time) *HealthHandler {
	return &HealthHandler{supervisor: supervisor, startedAt: startedAt}
}

// livenessData is the payload of a /healthz response.
type livenessData struct {
	Service   string `json:"service"`
	Plugins   int    `json:"plugins"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
}

// Liveness handles GET /healthz - simple liveness probe.
//
// Returns 200 OK if the server process is running. This endpoint is designed
// for orchestrator liveness probes and should always succeed as long as the
// HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	plugins := 0
	if h.supervisor != nil {
		plugins = len(h.supervisor.List())
	}
	writeJSON(w, http.StatusOK, healthyResponse(livenessData{
		Service:   "plugind",
		Plugins:   plugins,
		StartedAt: h.startedAt.UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startedAt).String(),
	}))
}
