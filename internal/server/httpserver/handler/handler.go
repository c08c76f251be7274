package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/atymic/soketi/internal/adapter"
	"github.com/atymic/soketi/internal/apps"
	"github.com/atymic/soketi/internal/core/domain"
)

// contextKey is the private type for request-scoped values.
type contextKey string

// contextKeyApp carries the authenticated app between the auth
// middleware and the handlers.
const contextKeyApp contextKey = "app"

// ContextWithApp returns a context carrying the authenticated app.
func ContextWithApp(ctx context.Context, app *apps.App) context.Context {
	return context.WithValue(ctx, contextKeyApp, app)
}

// AppFromContext returns the authenticated app, or nil when the
// request did not pass through the auth middleware.
func AppFromContext(ctx context.Context) *apps.App {
	if app, ok := ctx.Value(contextKeyApp).(*apps.App); ok {
		return app
	}
	return nil
}

// Handler routes Pusher REST requests to the adapter.
type Handler struct {
	adapter  adapter.Adapter
	apps     apps.Manager
	limiters *apps.LimiterRegistry
	logger   *slog.Logger
	mux      *http.ServeMux
	ready    atomic.Bool
}

// New creates a Handler over the given adapter and app registry.
func New(ad adapter.Adapter, mgr apps.Manager, limiters *apps.LimiterRegistry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		adapter:  ad,
		apps:     mgr,
		limiters: limiters,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	h.ready.Store(true)
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// SetReady flips the readiness probe. The server turns it off when
// draining so load balancers stop routing new requests here.
func (h *Handler) SetReady(ready bool) {
	h.ready.Store(ready)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	// Probes (no auth required)
	h.mux.HandleFunc("GET /{$}", h.handleRoot)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	// Channel queries
	h.mux.HandleFunc("GET /apps/{appId}/channels", h.handleChannels)
	h.mux.HandleFunc("GET /apps/{appId}/channels/{channel}", h.handleChannel)
	h.mux.HandleFunc("GET /apps/{appId}/channels/{channel}/users", h.handleChannelUsers)

	// Event publishing
	h.mux.HandleFunc("POST /apps/{appId}/events", h.handleEvents)
	h.mux.HandleFunc("POST /apps/{appId}/batch_events", h.handleBatchEvents)

	// User management
	h.mux.HandleFunc("POST /apps/{appId}/users/{userId}/terminate_connections", h.handleTerminateUser)
}

// app returns the authenticated app for the request. The auth
// middleware stores it in the context; without the middleware (direct
// handler tests) the app is resolved from the path instead.
func (h *Handler) app(r *http.Request) (*apps.App, error) {
	if app := AppFromContext(r.Context()); app != nil {
		return app, nil
	}
	return h.apps.FindByID(r.Context(), r.PathValue("appId"))
}

// writeJSON writes a 2xx JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	if code != "" {
		w.Header().Set("X-Error-Code", code)
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}

// writeDomainError maps a domain error rising from the adapter or the
// app registry to its HTTP status.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAppNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAppDisabled):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrRequestTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrAdapterClosed), errors.Is(err, domain.ErrServiceUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrNotPresenceChannel),
		errors.Is(err, domain.ErrChannelNameTooLong),
		errors.Is(err, domain.ErrEventValidation),
		errors.Is(err, domain.ErrEventTooManyChannels),
		errors.Is(err, domain.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrEventPayloadTooLarge), errors.Is(err, domain.ErrEventBatchTooLarge):
		status = http.StatusRequestEntityTooLarge
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	h.writeError(w, status, domain.GetErrorCode(err), err.Error())
}
