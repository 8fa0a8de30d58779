package tracker

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	stockwatch "github.com/eugener/stockwatch/internal"
)

// Registry maps tracker names to Tracker instances.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{trackers: make(map[string]*Tracker)}
}

// Register adds t under its name. Names are unique.
func (r *Registry) Register(t *Tracker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trackers[t.Name()]; ok {
		return fmt.Errorf("tracker %q already registered: %w", t.Name(), stockwatch.ErrConflict)
	}
	r.trackers[t.Name()] = t
	return nil
}

// Get returns the tracker registered under name.
func (r *Registry) Get(name string) (*Tracker, error) {
	r.mu.RLock()
	t, ok := r.trackers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tracker %q: %w", name, stockwatch.ErrNotFound)
	}
	return t, nil
}

// List returns all registered trackers sorted by name.
func (r *Registry) List() []*Tracker {
	r.mu.RLock()
	out := make([]*Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		out = append(out, t)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Tracker) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return out
}
