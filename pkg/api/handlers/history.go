package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nodewatch/plugind/internal/history"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// HistoryHandler exposes the plugin lifecycle event log, letting an
// operator ask "why was this plugin benched" after the fact.
type HistoryHandler struct {
	store *history.Store
}

// NewHistoryHandler creates a handler backed by store. A nil store (history
// disabled or failed to open) makes every request answer 503 rather than
// pretending the log is empty.
func NewHistoryHandler(store *history.Store) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// Recent handles GET /v1/plugins/{id}/history - the most recent lifecycle
// events for a plugin, newest first. ?limit=N bounds the result
// (default 20, capped at 500).
func (h *HistoryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "history store not configured")
		return
	}

	id := chi.URLParam(r, "id")

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			BadRequest(w, "limit must be a positive integer")
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}

	events, err := h.store.Recent(id, limit)
	if err != nil {
		InternalServerError(w, err.Error())
		return
	}
	if events == nil {
		events = []history.Event{}
	}
	writeJSON(w, http.StatusOK, okResponse(events))
}
