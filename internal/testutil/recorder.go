package testutil

import (
	"context"
	"sync"

	stockwatch "github.com/eugener/stockwatch/internal"
)

// Recorder is a stockwatch.Callback sink that keeps every result it receives,
// including nil ones, in arrival order.
type Recorder struct {
	mu      sync.Mutex
	results []*stockwatch.DropResult
	checks  []string
}

// Callback returns the recording handler.
func (r *Recorder) Callback() stockwatch.Callback {
	return func(ctx context.Context, res *stockwatch.DropResult) {
		r.mu.Lock()
		r.results = append(r.results, res)
		r.checks = append(r.checks, stockwatch.CheckIDFromContext(ctx))
		r.mu.Unlock()
	}
}

// Results returns a copy of the recorded results.
func (r *Recorder) Results() []*stockwatch.DropResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*stockwatch.DropResult, len(r.results))
	copy(out, r.results)
	return out
}

// CheckIDs returns the check IDs seen by the handler, in arrival order.
func (r *Recorder) CheckIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.checks))
	copy(out, r.checks)
	return out
}

// Len returns the number of recorded invocations.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}
