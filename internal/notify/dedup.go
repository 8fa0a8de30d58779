package notify

import (
	"context"
	"log/slog"
	"time"

	stockwatch "github.com/eugener/stockwatch/internal"
	"github.com/eugener/stockwatch/internal/cache"
	"github.com/eugener/stockwatch/internal/telemetry"
)

// Dedup forwards a drop to next only if at least one of its links has not
// been forwarded within ttl. Keys are scoped per tracker. Drops without
// links are keyed by their info text. Empty results pass through.
// m may be nil.
func Dedup(next stockwatch.Callback, seen cache.Set, ttl time.Duration, m *telemetry.Metrics) stockwatch.Callback {
	return func(ctx context.Context, res *stockwatch.DropResult) {
		if res == nil {
			next(ctx, res)
			return
		}
		name := stockwatch.TrackerFromContext(ctx)
		keys := res.Links()
		if len(keys) == 0 {
			keys = []string{"info:" + res.Info()}
		}

		fresh := false
		for _, k := range keys {
			if !seen.Contains(ctx, name+"|"+k) {
				fresh = true
				break
			}
		}
		if !fresh {
			slog.LogAttrs(ctx, slog.LevelDebug, "drop suppressed, already notified",
				slog.String("tracker", name),
			)
			if m != nil {
				m.DropsSuppressed.WithLabelValues(name).Inc()
			}
			return
		}

		for _, k := range keys {
			seen.Add(ctx, name+"|"+k, ttl)
		}
		next(ctx, res)
	}
}
