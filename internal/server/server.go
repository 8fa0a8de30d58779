// Package server implements the admin HTTP API for stockwatch.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	stockwatch "github.com/eugener/stockwatch/internal"
	"github.com/eugener/stockwatch/internal/ratelimit"
	"github.com/eugener/stockwatch/internal/telemetry"
	"github.com/eugener/stockwatch/internal/tracker"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Authenticator validates admin credentials on a request.
type Authenticator interface {
	Authenticate(r *http.Request) error
}

// LastDrops returns the latest drop reported by a tracker, or nil.
type LastDrops interface {
	Last(name string) *stockwatch.DropResult
}

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Trackers       *tracker.Registry
	Recent         LastDrops          // nil = last drop omitted
	Auth           Authenticator      // nil = /v1 routes unauthenticated
	ReadyCheck     ReadyChecker       // nil = always ready (for tests)
	Metrics        *telemetry.Metrics // nil = no request metrics
	MetricsHandler http.Handler       // nil = no /metrics endpoint
	CheckLimiter   *ratelimit.Limiter // nil = manual checks unlimited
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	r.Use(s.recovery, s.requestID, s.observe)

	// System endpoints (no auth)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/v1/trackers", func(r chi.Router) {
		if deps.Auth != nil {
			r.Use(s.authenticate)
		}
		r.Get("/", s.handleListTrackers)
		r.Get("/{name}", s.handleGetTracker)
		r.Post("/{name}/check", s.handleRequestCheck)
		r.Post("/{name}/stop", s.handleStopTracker)
	})

	return r
}

type server struct {
	deps Deps
}
