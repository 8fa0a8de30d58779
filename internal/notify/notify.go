// Package notify provides the result handlers that trackers report to.
// Every handler has the stockwatch.Callback signature and may be combined
// with Fanout.
package notify

import (
	"context"
	"log/slog"
	"strings"

	stockwatch "github.com/eugener/stockwatch/internal"
	"github.com/eugener/stockwatch/internal/telemetry"
)

// Log returns a handler that logs each drop at INFO and each empty check at DEBUG.
func Log() stockwatch.Callback {
	return func(ctx context.Context, res *stockwatch.DropResult) {
		name := stockwatch.TrackerFromContext(ctx)
		if res == nil {
			slog.LogAttrs(ctx, slog.LevelDebug, "no new stock",
				slog.String("tracker", name),
			)
			return
		}
		slog.LogAttrs(ctx, slog.LevelInfo, "drop found",
			slog.String("tracker", name),
			slog.String("check_id", stockwatch.CheckIDFromContext(ctx)),
			slog.Time("date", res.Date()),
			slog.String("info", res.Info()),
			slog.String("links", strings.Join(res.Links(), " ")),
		)
	}
}

// Fanout returns a handler that calls each non-nil handler in order.
func Fanout(cbs ...stockwatch.Callback) stockwatch.Callback {
	active := make([]stockwatch.Callback, 0, len(cbs))
	for _, cb := range cbs {
		if cb != nil {
			active = append(active, cb)
		}
	}
	return func(ctx context.Context, res *stockwatch.DropResult) {
		for _, cb := range active {
			cb(ctx, res)
		}
	}
}

// DropsOnly wraps next so it only sees populated results.
func DropsOnly(next stockwatch.Callback) stockwatch.Callback {
	return func(ctx context.Context, res *stockwatch.DropResult) {
		if res != nil {
			next(ctx, res)
		}
	}
}

// Count returns a handler that counts each drop under its tracker label.
// Empty results are ignored. It returns nil when m is nil, which Fanout skips.
func Count(m *telemetry.Metrics) stockwatch.Callback {
	if m == nil {
		return nil
	}
	return func(ctx context.Context, res *stockwatch.DropResult) {
		if res != nil {
			m.DropsTotal.WithLabelValues(stockwatch.TrackerFromContext(ctx)).Inc()
		}
	}
}
