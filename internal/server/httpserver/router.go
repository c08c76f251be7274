package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/atymic/soketi/internal/apps"
	"github.com/atymic/soketi/internal/server/httpserver/handler"
	"github.com/atymic/soketi/internal/telemetry/metric"
)

// RouterConfig holds the collaborators of the HTTP router.
type RouterConfig struct {
	// Apps resolves and authenticates the tenant named in the path.
	Apps apps.Manager

	// Limiters enforces the per-app read request budget.
	Limiters *apps.LimiterRegistry

	// Logger for request and middleware logging.
	Logger *slog.Logger

	// Metrics instruments each route when set.
	Metrics *metric.Registry

	// AuthTimestampGrace overrides the signature timestamp window.
	AuthTimestampGrace time.Duration
}

// NewRouter wraps the handler in the full middleware stack and returns
// the root http.Handler.
//
// Requests fall into three groups: probes carry no authentication,
// channel queries are signed and read-rate-limited, event publishes
// are signed with their backend budget enforced inside the handler
// (the cost depends on the batch size, which only the handler knows).
func NewRouter(h *handler.Handler, cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	auth := &AuthConfig{
		Apps:           cfg.Apps,
		Logger:         log,
		TimestampGrace: cfg.AuthTimestampGrace,
	}

	probe := Chain(h, RequestID(), Recover(log))

	read := Chain(h,
		RequestID(),
		Recover(log),
		RequestLog(log),
		PusherAuth(auth),
		ReadRateLimit(cfg.Limiters),
	)

	write := Chain(h,
		RequestID(),
		Recover(log),
		RequestLog(log),
		PusherAuth(auth),
	)

	instrument := func(name string, next http.Handler) http.Handler {
		if cfg.Metrics == nil {
			return next
		}
		return cfg.Metrics.InstrumentHandler(name, next)
	}

	mux := http.NewServeMux()

	mux.Handle("GET /{$}", probe)
	mux.Handle("GET /health", probe)
	mux.Handle("GET /ready", probe)

	mux.Handle("GET /apps/{appId}/channels", instrument("channels_index", read))
	mux.Handle("GET /apps/{appId}/channels/{channel}", instrument("channel_show", read))
	mux.Handle("GET /apps/{appId}/channels/{channel}/users", instrument("channel_users", read))

	mux.Handle("POST /apps/{appId}/events", instrument("events", write))
	mux.Handle("POST /apps/{appId}/batch_events", instrument("batch_events", write))
	mux.Handle("POST /apps/{appId}/users/{userId}/terminate_connections", instrument("terminate_user_connections", write))

	return mux
}
