package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	stockwatch "github.com/eugener/stockwatch/internal"
	"github.com/eugener/stockwatch/internal/checker"
	"github.com/eugener/stockwatch/internal/circuitbreaker"
	"github.com/eugener/stockwatch/internal/httpclient"
	"github.com/eugener/stockwatch/internal/telemetry"
	"github.com/eugener/stockwatch/internal/tracker"
	"github.com/eugener/stockwatch/internal/worker"
)

// Deps are the shared collaborators Bootstrap wires into every tracker.
type Deps struct {
	Transport http.RoundTripper   // base outbound transport; nil = http.DefaultTransport
	Timeout   time.Duration       // per-check HTTP timeout
	Callback  stockwatch.Callback // nil = tracker default
	Metrics   *telemetry.Metrics  // nil = no metrics
	Tracer    trace.Tracer        // nil = no tracing
	Logger    *slog.Logger        // nil = slog.Default()
}

// Bootstrap builds a tracker for every enabled config entry, registers it
// in reg and returns the schedules that drive them.
func Bootstrap(ctx context.Context, cfg *Config, reg *tracker.Registry, deps Deps) ([]worker.Schedule, error) {
	var schedules []worker.Schedule
	for _, e := range cfg.Trackers {
		if !e.IsEnabled() {
			slog.Info("tracker disabled, skipping", "name", e.Name)
			continue
		}

		chk, err := buildChecker(ctx, e, deps)
		if err != nil {
			return nil, fmt.Errorf("tracker %q: %w", e.Name, err)
		}
		if e.Breaker != nil {
			chk = circuitbreaker.Guard(e.Name, chk, circuitbreaker.NewBreaker(e.Breaker.BreakerConfig()))
		}
		policy, err := tracker.ParseErrorPolicy(e.OnError)
		if err != nil {
			return nil, fmt.Errorf("tracker %q: %w", e.Name, err)
		}

		t := tracker.New(e.Name, telemetry.InstrumentChecker(e.Name, chk, deps.Metrics, deps.Tracer),
			tracker.WithCallback(deps.Callback),
			tracker.WithErrorPolicy(policy),
			tracker.WithTestMode(e.TestMode),
			tracker.WithDrainOnStop(e.ResolvedDrainOnStop()),
			tracker.WithLogger(deps.Logger),
		)
		if err := reg.Register(t); err != nil {
			return nil, err
		}
		if deps.Metrics != nil {
			if err := deps.Metrics.WatchPending(t); err != nil {
				return nil, fmt.Errorf("tracker %q: pending gauge: %w", e.Name, err)
			}
		}

		schedules = append(schedules, worker.Schedule{
			Target:    t,
			Interval:  e.Interval,
			Immediate: e.CheckOnStart,
		})
		slog.Info("bootstrapped tracker", "name", e.Name, "type", e.ResolvedType(), "interval", e.Interval)
	}
	return schedules, nil
}

func buildChecker(ctx context.Context, e TrackerEntry, deps Deps) (stockwatch.Checker, error) {
	switch e.ResolvedType() {
	case TrackerTypeHTTPJSON:
		client, err := buildClient(ctx, e, deps)
		if err != nil {
			return nil, err
		}
		return checker.NewHTTPJSON(checker.HTTPJSONConfig{
			URL:           e.URL,
			Headers:       e.Headers,
			AvailablePath: e.Paths.Available,
			LinksPath:     e.Paths.Links,
			InfoPath:      e.Paths.Info,
		}, client)
	default:
		return nil, fmt.Errorf("unknown tracker type %q: %w", e.Type, stockwatch.ErrBadRequest)
	}
}

func buildClient(ctx context.Context, e TrackerEntry, deps Deps) (*http.Client, error) {
	transport := deps.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if e.Auth != nil {
		switch e.Auth.Type {
		case "api_key":
			transport = &httpclient.APIKeyTransport{
				Key:        e.Auth.APIKey,
				HeaderName: e.Auth.ResolvedHeader(),
				Prefix:     e.Auth.ResolvedPrefix(),
				Base:       transport,
			}
		case "oauth":
			t, err := httpclient.NewOAuthTransport(ctx, transport, httpclient.ClientCredentials{
				TokenURL:     e.Auth.TokenURL,
				ClientID:     e.Auth.ClientID,
				ClientSecret: e.Auth.ClientSecret,
				Scopes:       e.Auth.Scopes,
			})
			if err != nil {
				return nil, err
			}
			transport = t
		case "gcp":
			t, err := httpclient.NewGCPTransport(ctx, transport, e.Auth.Scopes...)
			if err != nil {
				return nil, err
			}
			transport = t
		case "aws_sigv4":
			t, err := httpclient.NewDefaultSigV4Transport(ctx, transport, e.Auth.Region, e.Auth.ResolvedService())
			if err != nil {
				return nil, err
			}
			transport = t
		default:
			return nil, fmt.Errorf("unknown auth type %q: %w", e.Auth.Type, stockwatch.ErrBadRequest)
		}
	}
	return &http.Client{Transport: transport, Timeout: deps.Timeout}, nil
}
