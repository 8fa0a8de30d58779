package circuitbreaker

import (
	"context"
	"fmt"
	"log/slog"

	stockwatch "github.com/eugener/stockwatch/internal"
)

// Guard wraps next so checks are skipped while b is open. A skipped check
// returns an error wrapping stockwatch.ErrCircuitOpen without contacting
// the endpoint.
func Guard(name string, next stockwatch.Checker, b *Breaker) stockwatch.Checker {
	return stockwatch.CheckerFunc(func(ctx context.Context) (*stockwatch.DropResult, error) {
		before := b.State()
		if !b.Allow() {
			return nil, fmt.Errorf("tracker %q: %w", name, stockwatch.ErrCircuitOpen)
		}

		res, err := next.Check(ctx)
		b.Record(ClassifyError(err))

		if after := b.State(); after != before {
			slog.LogAttrs(ctx, slog.LevelWarn, "circuit breaker state changed",
				slog.String("tracker", name),
				slog.String("from", before.String()),
				slog.String("to", after.String()),
			)
		}
		return res, err
	})
}
