package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nodewatch/plugind/internal/history"
	"github.com/nodewatch/plugind/internal/logger"
	"github.com/nodewatch/plugind/internal/plugin"
	"github.com/nodewatch/plugind/pkg/api/auth"
	"github.com/nodewatch/plugind/pkg/api/handlers"
	apiMiddleware "github.com/nodewatch/plugind/pkg/api/middleware"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /healthz - Liveness probe
//   - GET /v1/plugins - Every registered plugin's health snapshot
//   - GET /v1/plugins/{id} - A single plugin's health snapshot
//   - GET /v1/plugins/{id}/history - Recent lifecycle events for a plugin
//   - POST /v1/plugins/{id}/functions/{name} - Invoke a FUNCTION callback
//
// When jwtService is non-nil the function invocation route requires a
// bearer token carrying the functions:invoke scope; every other route stays
// unauthenticated. hist may be nil, in which case the history route
// answers 503.
func NewRouter(supervisor *plugin.Supervisor, jwtService *auth.JWTService, functionTimeout time.Duration, startedAt time.Time, hist *history.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(supervisor, startedAt)
	pluginsHandler := handlers.NewPluginsHandler(supervisor, functionTimeout)
	historyHandler := handlers.NewHistoryHandler(hist)

	r.Get("/healthz", healthHandler.Liveness)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/healthz", http.StatusTemporaryRedirect)
	})

	r.Route("/v1/plugins", func(r chi.Router) {
		r.Get("/", pluginsHandler.List)
		r.Get("/{id}", pluginsHandler.Get)
		r.Get("/{id}/history", historyHandler.Recent)

		r.Route("/{id}/functions/{name}", func(r chi.Router) {
			if jwtService != nil {
				r.Use(apiMiddleware.JWTAuth(jwtService))
				r.Use(apiMiddleware.RequireScope(auth.ScopeInvokeFunction))
			}
			r.Post("/", pluginsHandler.InvokeFunction)
		})
	})

	return r
}

// requestLogger is a custom middleware that logs requests using the internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		)
	})
}
