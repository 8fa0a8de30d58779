package notify

import (
	"context"
	"sync"

	stockwatch "github.com/eugener/stockwatch/internal"
)

// Recent keeps the latest drop per tracker in memory. It is safe for
// concurrent use.
type Recent struct {
	mu    sync.RWMutex
	drops map[string]*stockwatch.DropResult
}

// NewRecent returns an empty Recent.
func NewRecent() *Recent {
	return &Recent{drops: make(map[string]*stockwatch.DropResult)}
}

// Callback returns a handler that remembers each drop under its tracker name.
func (r *Recent) Callback() stockwatch.Callback {
	return func(ctx context.Context, res *stockwatch.DropResult) {
		if res == nil {
			return
		}
		name := stockwatch.TrackerFromContext(ctx)
		r.mu.Lock()
		r.drops[name] = res
		r.mu.Unlock()
	}
}

// Last returns the latest drop reported by the named tracker, or nil.
func (r *Recent) Last(name string) *stockwatch.DropResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.drops[name]
}
