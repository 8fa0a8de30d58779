package config

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	stockwatch "github.com/eugener/stockwatch/internal"
	"github.com/eugener/stockwatch/internal/telemetry"
	"github.com/eugener/stockwatch/internal/testutil"
	"github.com/eugener/stockwatch/internal/tracker"
)

func TestBootstrap(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "k1" {
			t.Errorf("x-api-key = %q, want k1", got)
		}
		io.WriteString(w, `{"ok":true,"links":["https://shop.example/1"],"title":"restock"}`)
	}))
	defer srv.Close()

	disabled := false
	cfg := &Config{Trackers: []TrackerEntry{
		{
			Name:         "shop",
			URL:          srv.URL,
			Interval:     time.Minute,
			CheckOnStart: true,
			Paths:        PathsEntry{Available: "ok", Links: "links", Info: "title"},
			Auth:         &AuthEntry{Type: "api_key", Header: "x-api-key", APIKey: "k1"},
		},
		{Name: "off", URL: srv.URL, Enabled: &disabled, Paths: PathsEntry{Available: "ok"}},
	}}

	rec := &testutil.Recorder{}
	reg := tracker.NewRegistry()
	m := telemetry.NewMetrics(prometheus.NewPedanticRegistry())
	schedules, err := Bootstrap(context.Background(), cfg, reg, Deps{
		Callback: rec.Callback(),
		Metrics:  m,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(schedules) != 1 {
		t.Fatalf("schedules = %d, want 1", len(schedules))
	}
	if schedules[0].Interval != time.Minute || !schedules[0].Immediate {
		t.Errorf("schedule = %+v", schedules[0])
	}
	if _, err := reg.Get("off"); !errors.Is(err, stockwatch.ErrNotFound) {
		t.Error("disabled tracker should not be registered")
	}

	tr, err := reg.Get("shop")
	if err != nil {
		t.Fatal(err)
	}
	tr.RequestCheck()
	tr.Stop()
	if err := tr.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	results := rec.Results()
	if len(results) != 1 || results[0] == nil {
		t.Fatalf("results = %v, want one drop", results)
	}
	if results[0].Info() != "restock" {
		t.Errorf("info = %q", results[0].Info())
	}
}

func TestBootstrapDuplicateName(t *testing.T) {
	t.Parallel()

	entry := TrackerEntry{Name: "dup", URL: "http://127.0.0.1:1", Paths: PathsEntry{Available: "ok"}}
	cfg := &Config{Trackers: []TrackerEntry{entry, entry}}

	_, err := Bootstrap(context.Background(), cfg, tracker.NewRegistry(), Deps{})
	if !errors.Is(err, stockwatch.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestBootstrapUnknownType(t *testing.T) {
	t.Parallel()

	cfg := &Config{Trackers: []TrackerEntry{{Name: "x", Type: "html", URL: "http://x", Paths: PathsEntry{Available: "ok"}}}}
	_, err := Bootstrap(context.Background(), cfg, tracker.NewRegistry(), Deps{})
	if !errors.Is(err, stockwatch.ErrBadRequest) {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}
}

func TestBootstrapBreakerSkipsFailingEndpoint(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := &Config{Trackers: []TrackerEntry{{
		Name:    "flaky",
		URL:     srv.URL,
		Paths:   PathsEntry{Available: "ok"},
		Breaker: &BreakerEntry{MinSamples: 2, Window: 2, OpenTimeout: time.Hour},
	}}}
	reg := tracker.NewRegistry()
	if _, err := Bootstrap(context.Background(), cfg, reg, Deps{Timeout: 5 * time.Second}); err != nil {
		t.Fatal(err)
	}

	tr, err := reg.Get("flaky")
	if err != nil {
		t.Fatal(err)
	}
	for range 4 {
		tr.RequestCheck()
	}
	tr.Stop()
	if err := tr.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := hits.Load(); got != 2 {
		t.Errorf("endpoint hits = %d, want 2 before the breaker opened", got)
	}
}
