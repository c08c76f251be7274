// Package shutdown coordinates graceful process termination.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Hook is a teardown step. It receives a context that expires when the
// shutdown grace period runs out.
type Hook func(context.Context) error

// Handler collects teardown hooks and runs them when the process
// receives SIGINT or SIGTERM.
type Handler struct {
	timeout time.Duration

	mu    sync.Mutex
	hooks []Hook

	done chan struct{}
}

// NewHandler creates a shutdown handler. All hooks together share the
// given grace period.
func NewHandler(timeout time.Duration) *Handler {
	return &Handler{
		timeout: timeout,
		hooks:   make([]Hook, 0),
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a teardown hook. Register hooks in startup
// order: they run in reverse, so the last component started is the
// first torn down.
func (h *Handler) OnShutdown(hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// Wait blocks until SIGINT or SIGTERM arrives, then runs every hook in
// reverse registration order. A failing hook does not stop the rest;
// Wait returns the collected errors once all hooks ran.
//
// The signal subscription is dropped before the hooks run, so a second
// signal kills the process instead of being swallowed.
func (h *Handler) Wait() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	signal.Stop(sigCh)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := make([]Hook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	close(h.done)
	return errors.Join(errs...)
}

// Done is closed once Wait has run every hook.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
