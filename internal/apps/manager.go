package apps

import (
	"context"
	"fmt"
	"sync"

	"github.com/atymic/soketi/internal/core/domain"
)

// Manager resolves apps for authentication and connection handling.
//
// Implementations return copies; callers may not mutate shared state
// through the result. A disabled app resolves to ErrAppDisabled so
// callers can distinguish "unknown credentials" from "known but off".
type Manager interface {
	// FindByID returns the app with the given id.
	FindByID(ctx context.Context, id string) (*App, error)

	// FindByKey returns the app with the given public key.
	FindByKey(ctx context.Context, key string) (*App, error)

	// Close releases any resources held by the manager.
	Close() error
}

// ============================================================================
// Memory manager
// ============================================================================

// MemoryManager serves a fixed set of apps from memory. The set can be
// swapped atomically with Replace, which is what the file watcher uses
// for hot reload.
type MemoryManager struct {
	mu    sync.RWMutex
	byID  map[string]*App
	byKey map[string]*App
}

var _ Manager = (*MemoryManager)(nil)

// NewMemoryManager validates the given apps, applies limit defaults and
// indexes them by id and key. Duplicate ids or keys are rejected.
func NewMemoryManager(list []App) (*MemoryManager, error) {
	byID, byKey, err := indexApps(list)
	if err != nil {
		return nil, err
	}
	return &MemoryManager{byID: byID, byKey: byKey}, nil
}

// Replace swaps the full app set. Lookups in flight finish against the
// old set; new lookups see the new one.
func (m *MemoryManager) Replace(list []App) error {
	byID, byKey, err := indexApps(list)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.byID = byID
	m.byKey = byKey
	m.mu.Unlock()
	return nil
}

// FindByID returns the app with the given id.
func (m *MemoryManager) FindByID(_ context.Context, id string) (*App, error) {
	m.mu.RLock()
	app, ok := m.byID[id]
	m.mu.RUnlock()
	return checkoutApp(app, ok)
}

// FindByKey returns the app with the given public key.
func (m *MemoryManager) FindByKey(_ context.Context, key string) (*App, error) {
	m.mu.RLock()
	app, ok := m.byKey[key]
	m.mu.RUnlock()
	return checkoutApp(app, ok)
}

// Len returns the number of registered apps.
func (m *MemoryManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Close implements Manager. The memory manager holds no resources.
func (m *MemoryManager) Close() error {
	return nil
}

// indexApps validates and indexes an app list for lookup.
func indexApps(list []App) (map[string]*App, map[string]*App, error) {
	byID := make(map[string]*App, len(list))
	byKey := make(map[string]*App, len(list))

	for i := range list {
		app := list[i]
		if err := app.Validate(); err != nil {
			return nil, nil, err
		}
		app.ApplyDefaults()

		if _, ok := byID[app.ID]; ok {
			return nil, nil, domain.ErrAppConflict.WithDetails(fmt.Sprintf("duplicate app id %s", app.ID))
		}
		if _, ok := byKey[app.Key]; ok {
			return nil, nil, domain.ErrAppConflict.WithDetails(fmt.Sprintf("duplicate app key %s", app.Key))
		}

		stored := app
		byID[app.ID] = &stored
		byKey[app.Key] = &stored
	}
	return byID, byKey, nil
}

// checkoutApp turns a lookup result into a caller-owned copy.
func checkoutApp(app *App, ok bool) (*App, error) {
	if !ok {
		return nil, domain.ErrAppNotFound
	}
	if app.Disabled {
		return nil, domain.ErrAppDisabled
	}
	out := *app
	return &out, nil
}
