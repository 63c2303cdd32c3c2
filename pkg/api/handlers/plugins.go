package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nodewatch/plugind/internal/functions"
	"github.com/nodewatch/plugind/internal/logger"
	"github.com/nodewatch/plugind/internal/plugin"
)

// PluginsHandler exposes plugin health snapshots and the HTTP side of the
// FUNCTION invocation round trip.
type PluginsHandler struct {
	supervisor     *plugin.Supervisor
	defaultTimeout time.Duration
}

// NewPluginsHandler creates a handler backed by supervisor. defaultTimeout
// is used for POST .../functions/{name} requests that don't specify one.
func NewPluginsHandler(supervisor *plugin.Supervisor, defaultTimeout time.Duration) *PluginsHandler {
	if defaultTimeout <= 0 {
		defaultTimeout = functions.DefaultTimeout
	}
	return &PluginsHandler{supervisor: supervisor, defaultTimeout: defaultTimeout}
}

// List handles GET /v1/plugins - every registered plugin's health snapshot.
func (h *PluginsHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshots := h.supervisor.List()
	if snapshots == nil {
		snapshots = []plugin.Snapshot{}
	}
	writeJSON(w, http.StatusOK, okResponse(snapshots))
}

// Get handles GET /v1/plugins/{id} - a single plugin's health snapshot.
func (h *PluginsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec := h.supervisor.Get(id)
	if rec == nil {
		NotFound(w, "no such plugin: "+id)
		return
	}
	writeJSON(w, http.StatusOK, okResponse(rec.Snapshot()))
}

// invokeRequest is the POST body for InvokeFunction.
type invokeRequest struct {
	Args      []string `json:"args"`
	TimeoutMs int64    `json:"timeout_ms"`
}

// invokeResponse mirrors the delivered functions.Result.
type invokeResponse struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	ExpiresAt   int64  `json:"expires_at"`
	Payload     string `json:"payload"`
}

// InvokeFunction handles POST /v1/plugins/{id}/functions/{name}: it opens an
// in-flight function call against the named plugin's session and blocks
// (bounded by the request's context, which chi's Timeout middleware already
// deadlines) until the correlated FUNCTION_RESULT_BEGIN...END frame is
// delivered, then returns it as the HTTP response.
func (h *PluginsHandler) InvokeFunction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	rec := h.supervisor.Get(id)
	if rec == nil {
		NotFound(w, "no such plugin: "+id)
		return
	}
	if rec.Obsolete() {
		BadRequest(w, "plugin is obsolete: "+id)
		return
	}

	var req invokeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body: "+err.Error())
			return
		}
	}

	timeout := h.defaultTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	resultCh, err := rec.Invoke(r.Context(), name, req.Args, timeout)
	if err != nil {
		if errors.Is(err, plugin.ErrNoCommandChannel) {
			WriteProblem(w, http.StatusServiceUnavailable, "Service Unavailable", err.Error())
			return
		}
		InternalServerError(w, err.Error())
		return
	}

	select {
	case result, ok := <-resultCh:
		if !ok {
			GatewayTimeout(w, "function call timed out or was cancelled")
			return
		}
		writeJSON(w, http.StatusOK, okResponse(invokeResponse{
			StatusCode:  result.StatusCode,
			ContentType: result.ContentType,
			ExpiresAt:   result.ExpiresAt.Unix(),
			Payload:     string(result.Payload),
		}))
	case <-r.Context().Done():
		logger.Warn("function invocation request cancelled", logger.PluginID(id), logger.FunctionName(name))
		GatewayTimeout(w, "request cancelled before function result arrived")
	}
}
