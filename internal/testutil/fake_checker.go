// Package testutil provides configurable test fakes for stockwatch interfaces.
package testutil

import (
	"context"
	"sync/atomic"

	stockwatch "github.com/eugener/stockwatch/internal"
)

// FakeChecker is a configurable stockwatch.Checker that counts its calls.
type FakeChecker struct {
	CheckFn func(ctx context.Context, n int) (*stockwatch.DropResult, error)
	calls   atomic.Int64
}

// Check increments the call count and delegates to CheckFn with the 1-based
// call number. Without CheckFn it reports no result.
func (f *FakeChecker) Check(ctx context.Context) (*stockwatch.DropResult, error) {
	n := int(f.calls.Add(1))
	if f.CheckFn != nil {
		return f.CheckFn(ctx, n)
	}
	return nil, nil
}

// Calls returns how many times Check has run.
func (f *FakeChecker) Calls() int { return int(f.calls.Load()) }
