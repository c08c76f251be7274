package apps

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateClass names one of the per-app rate limits.
type RateClass string

const (
	ClassBackendEvents RateClass = "backend"
	ClassClientEvents  RateClass = "client"
	ClassReadRequests  RateClass = "read"
)

// appLimiter pairs a limiter with the limit it was built from, so a
// hot-reloaded app with a new limit gets a fresh limiter.
type appLimiter struct {
	limiter *rate.Limiter
	limit   int
}

// LimiterRegistry keeps one token bucket per app and rate class.
// Limits of zero or below mean unlimited and consume no bucket.
type LimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*appLimiter
}

// NewLimiterRegistry creates an empty registry.
func NewLimiterRegistry() *LimiterRegistry {
	return &LimiterRegistry{
		limiters: make(map[string]*appLimiter),
	}
}

// AllowBackendEvent reports whether the app may publish another event
// through the HTTP API right now.
func (r *LimiterRegistry) AllowBackendEvent(app *App) bool {
	return r.allow(app.ID, ClassBackendEvents, app.MaxBackendEventsPerSecond)
}

// AllowBackendEventN reports whether the app may publish n more events
// right now. The batch endpoint consumes its whole batch at once so a
// rejected batch costs nothing.
func (r *LimiterRegistry) AllowBackendEventN(app *App, n int) bool {
	limit := app.MaxBackendEventsPerSecond
	if limit <= 0 {
		return true
	}
	return r.getOrCreate(app.ID, ClassBackendEvents, limit).AllowN(time.Now(), n)
}

// AllowClientEvent reports whether the app may relay another client
// event right now.
func (r *LimiterRegistry) AllowClientEvent(app *App) bool {
	return r.allow(app.ID, ClassClientEvents, app.MaxClientEventsPerSecond)
}

// AllowRead reports whether the app may issue another read request
// against the HTTP API right now.
func (r *LimiterRegistry) AllowRead(app *App) bool {
	return r.allow(app.ID, ClassReadRequests, app.MaxReadRequestsPerSecond)
}

func (r *LimiterRegistry) allow(appID string, class RateClass, limit int) bool {
	if limit <= 0 {
		return true
	}
	return r.getOrCreate(appID, class, limit).Allow()
}

// getOrCreate returns the limiter for an app and class, building it on
// first use. Fast path is a read lock; the write path re-checks under
// the write lock. A changed limit replaces the limiter.
func (r *LimiterRegistry) getOrCreate(appID string, class RateClass, limit int) *rate.Limiter {
	key := limiterKey(appID, class)

	r.mu.RLock()
	entry, ok := r.limiters[key]
	r.mu.RUnlock()
	if ok && entry.limit == limit {
		return entry.limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.limiters[key]; ok && entry.limit == limit {
		return entry.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(limit), limit)
	r.limiters[key] = &appLimiter{limiter: limiter, limit: limit}
	return limiter
}

// Forget drops all limiters for an app.
func (r *LimiterRegistry) Forget(appID string) {
	prefix := appID + ":"

	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.limiters {
		if strings.HasPrefix(key, prefix) {
			delete(r.limiters, key)
		}
	}
}

// Len returns the number of live limiters.
func (r *LimiterRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}

func limiterKey(appID string, class RateClass) string {
	return appID + ":" + string(class)
}
