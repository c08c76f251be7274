package httpserver

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atymic/soketi/internal/apps"
	"github.com/atymic/soketi/internal/core/domain"
	"github.com/atymic/soketi/internal/server/httpserver/handler"
	"github.com/atymic/soketi/internal/telemetry/logger"
)

// DefaultAuthTimestampGrace is how far a request's auth_timestamp may
// sit from the server clock before the request is rejected. Pusher's
// documented window is ten minutes.
const DefaultAuthTimestampGrace = 600 * time.Second

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together. The first middleware in
// the list is the outermost one.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestID tags each request with an id, reusing the client's
// X-Request-ID when present. The id travels in the context so every
// log line of the request carries it.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}

			w.Header().Set("X-Request-ID", requestID)

			ctx := logger.WithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Recover turns a handler panic into a 500 instead of tearing down the
// connection.
func Recover(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic recovered",
						"request_id", logger.RequestIDFromContext(r.Context()),
						"panic", rec,
						"path", r.URL.Path,
					)
					writeMiddlewareError(w, http.StatusInternalServerError, domain.ErrInternalServer)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RequestLog logs one line per completed request, leveled by status.
func RequestLog(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			attrs := []any{
				"request_id", logger.RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", getClientIP(r),
			}

			switch {
			case wrapped.statusCode >= http.StatusInternalServerError:
				log.Error("request completed", attrs...)
			case wrapped.statusCode >= http.StatusBadRequest:
				log.Warn("request completed", attrs...)
			default:
				log.Info("request completed", attrs...)
			}
		})
	}
}

// AuthConfig holds the collaborators of the Pusher auth middleware.
type AuthConfig struct {
	Apps   apps.Manager
	Logger *slog.Logger

	// TimestampGrace overrides DefaultAuthTimestampGrace when positive.
	TimestampGrace time.Duration
}

// PusherAuth verifies the Pusher REST signature scheme: the app named
// in the path must exist, auth_key must match its key, auth_timestamp
// must sit inside the grace window, body_md5 must digest the actual
// body, and auth_signature must be the HMAC-SHA256 of
// "METHOD\npath\nsorted-params" under the app secret.
//
// On success the resolved app is stored in the request context for the
// handlers and later middleware.
func PusherAuth(cfg *AuthConfig) Middleware {
	grace := cfg.TimestampGrace
	if grace <= 0 {
		grace = DefaultAuthTimestampGrace
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			app, err := cfg.Apps.FindByID(r.Context(), r.PathValue("appId"))
			if err != nil {
				status := http.StatusInternalServerError
				switch {
				case errors.Is(err, domain.ErrAppNotFound):
					status = http.StatusNotFound
				case errors.Is(err, domain.ErrAppDisabled):
					status = http.StatusForbidden
				}
				writeMiddlewareError(w, status, err)
				return
			}

			query := r.URL.Query()

			if query.Get("auth_key") != app.Key {
				writeMiddlewareError(w, http.StatusUnauthorized, domain.ErrAuthKeyUnknown)
				return
			}

			ts, err := strconv.ParseInt(query.Get("auth_timestamp"), 10, 64)
			if err != nil || outsideGrace(ts, time.Now().Unix(), grace) {
				writeMiddlewareError(w, http.StatusUnauthorized, domain.ErrAuthTimestampSkew)
				return
			}

			// The body digest is part of the signed parameters, so the
			// body has to be read here and handed back to the handler.
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeMiddlewareError(w, http.StatusBadRequest, domain.ErrBadRequest.WithDetails("unreadable body"))
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			// Sign over every query parameter except the signature
			// itself, replacing the claimed body_md5 with the digest of
			// the body that actually arrived.
			params := make(map[string]string, len(query))
			for key := range query {
				k := strings.ToLower(key)
				if k == "auth_signature" || k == "body_md5" {
					continue
				}
				params[k] = query.Get(key)
			}
			if len(body) > 0 {
				digest := md5.Sum(body)
				bodyMD5 := hex.EncodeToString(digest[:])
				if claimed := query.Get("body_md5"); claimed != "" && !hmac.Equal([]byte(claimed), []byte(bodyMD5)) {
					writeMiddlewareError(w, http.StatusUnauthorized, domain.ErrAuthBodyDigest)
					return
				}
				params["body_md5"] = bodyMD5
			}

			want := authSignature(app.Secret, r.Method, r.URL.Path, params)
			got := query.Get("auth_signature")
			if got == "" || !hmac.Equal([]byte(want), []byte(strings.ToLower(got))) {
				if cfg.Logger != nil {
					cfg.Logger.Warn("rejected request signature",
						"app_id", app.ID,
						"path", r.URL.Path,
						"client_ip", getClientIP(r),
					)
				}
				writeMiddlewareError(w, http.StatusUnauthorized, domain.ErrAuthSignatureInvalid)
				return
			}

			next.ServeHTTP(w, r.WithContext(handler.ContextWithApp(r.Context(), app)))
		})
	}
}

// ReadRateLimit enforces the per-app read request budget. It must run
// after PusherAuth, which resolves the app.
func ReadRateLimit(limiters *apps.LimiterRegistry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			app := handler.AppFromContext(r.Context())
			if app != nil && limiters != nil && !limiters.AllowRead(app) {
				w.Header().Set("Retry-After", "1")
				writeMiddlewareError(w, http.StatusTooManyRequests,
					domain.ErrRateLimited.WithDetails("read request limit reached"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authSignature computes the Pusher REST signature for the given
// request shape: parameters sorted by name, joined unescaped, signed
// together with the method and path under the app secret.
func authSignature(secret, method, path string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	stringToSign := strings.ToUpper(method) + "\n" + path + "\n" + strings.Join(pairs, "&")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	return hex.EncodeToString(mac.Sum(nil))
}

// outsideGrace reports whether a claimed unix timestamp is further
// than the grace window from now.
func outsideGrace(claimed, now int64, grace time.Duration) bool {
	diff := now - claimed
	if diff < 0 {
		diff = -diff
	}
	return diff > int64(grace.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// writeMiddlewareError writes an error response in the same shape the
// handlers use.
func writeMiddlewareError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	if code := domain.GetErrorCode(err); code != "" {
		w.Header().Set("X-Error-Code", code)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(handler.ErrorResponse{
		Error: err.Error(),
		Code:  domain.GetErrorCode(err),
	})
}

// getClientIP extracts the client IP from the request, honoring the
// usual proxy headers.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// net.SplitHostPort handles IPv6 forms like [::1]:6001.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
