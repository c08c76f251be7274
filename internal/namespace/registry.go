package namespace

import (
	"github.com/atymic/soketi/pkg/cmap"
)

// Registry holds one Namespace per app, created on first use.
type Registry struct {
	namespaces *cmap.Map[string, *Namespace]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		namespaces: cmap.New[string, *Namespace](),
	}
}

// Namespace returns the app's namespace, creating it if needed.
func (r *Registry) Namespace(appID string) *Namespace {
	if ns, ok := r.namespaces.Get(appID); ok {
		return ns
	}
	ns, _ := r.namespaces.GetOrSet(appID, New(appID))
	return ns
}

// Each visits every namespace. The callback returns false to stop.
func (r *Registry) Each(fn func(appID string, ns *Namespace) bool) {
	r.namespaces.Range(func(appID string, ns *Namespace) bool {
		return fn(appID, ns)
	})
}

// AppIDs returns the ids of all apps with a live namespace.
func (r *Registry) AppIDs() []string {
	return r.namespaces.Keys()
}
