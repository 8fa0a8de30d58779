package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	stockwatch "github.com/eugener/stockwatch/internal"
)

// InstrumentChecker wraps next so every check is traced and counted under
// the tracker label name. Either of m and tracer may be nil.
func InstrumentChecker(name string, next stockwatch.Checker, m *Metrics, tracer trace.Tracer) stockwatch.Checker {
	return stockwatch.CheckerFunc(func(ctx context.Context) (*stockwatch.DropResult, error) {
		if tracer != nil {
			var span trace.Span
			ctx, span = tracer.Start(ctx, "stockwatch.check",
				trace.WithAttributes(
					attribute.String("stockwatch.tracker", name),
					attribute.String("stockwatch.check_id", stockwatch.CheckIDFromContext(ctx)),
				),
			)
			defer span.End()
			res, err := observe(ctx, name, next, m)
			switch {
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			case res != nil:
				span.SetAttributes(attribute.Int("stockwatch.links", len(res.Links())))
			}
			return res, err
		}
		return observe(ctx, name, next, m)
	})
}

func observe(ctx context.Context, name string, next stockwatch.Checker, m *Metrics) (*stockwatch.DropResult, error) {
	start := time.Now()
	res, err := next.Check(ctx)
	if m == nil {
		return res, err
	}
	m.CheckDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	outcome := OutcomeEmpty
	switch {
	case err != nil:
		outcome = OutcomeError
	case res != nil:
		outcome = OutcomeDrop
	}
	m.ChecksTotal.WithLabelValues(name, outcome).Inc()
	return res, err
}
