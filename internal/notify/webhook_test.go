package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	stockwatch "github.com/eugener/stockwatch/internal"
	"github.com/eugener/stockwatch/internal/telemetry"
)

func TestWebhook_Deliver(t *testing.T) {
	t.Parallel()

	type received struct {
		header http.Header
		body   map[string]any
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		got <- received{header: r.Header.Clone(), body: body}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, map[string]string{"X-Token": "secret"}, srv.Client(), nil)
	ctx := stockwatch.ContextWithCheckID(stockwatch.ContextWithTracker(context.Background(), "shop"), "check-9")
	drop := stockwatch.NewDropResult(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), []string{"l1", "l2"}, "restock")

	if err := wh.Deliver(ctx, drop); err != nil {
		t.Fatal(err)
	}

	r := <-got
	if r.header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", r.header.Get("Content-Type"))
	}
	if r.header.Get("X-Delivery-Id") == "" {
		t.Error("missing X-Delivery-Id")
	}
	if r.header.Get("X-Check-Id") != "check-9" {
		t.Errorf("X-Check-Id = %q, want check-9", r.header.Get("X-Check-Id"))
	}
	if r.header.Get("X-Token") != "secret" {
		t.Errorf("X-Token = %q", r.header.Get("X-Token"))
	}
	if r.body["tracker"] != "shop" || r.body["check_id"] != "check-9" {
		t.Errorf("body = %v", r.body)
	}
	d, ok := r.body["drop"].(map[string]any)
	if !ok {
		t.Fatalf("drop = %T", r.body["drop"])
	}
	if d["info"] != "restock" || d["date"] != "2024-01-02T03:04:05Z" {
		t.Errorf("drop = %v", d)
	}
	links, _ := d["links"].([]any)
	if len(links) != 2 || links[0] != "l1" || links[1] != "l2" {
		t.Errorf("links = %v", d["links"])
	}
}

func TestWebhook_CallbackCountsFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := telemetry.NewMetrics(prometheus.NewPedanticRegistry())
	wh := NewWebhook(srv.URL, nil, srv.Client(), m)

	err := wh.Deliver(context.Background(), stockwatch.NewDropResult(time.Now(), nil, ""))
	if !errors.Is(err, stockwatch.ErrUpstream) {
		t.Errorf("err = %v, want ErrUpstream", err)
	}

	cb := wh.Callback()
	cb(context.Background(), stockwatch.NewDropResult(time.Now(), nil, ""))
	cb(context.Background(), nil) // empty results are not delivered

	if got := promtest.ToFloat64(m.WebhookDeliveries.WithLabelValues("error")); got != 1 {
		t.Errorf("error deliveries = %v, want 1", got)
	}
}
