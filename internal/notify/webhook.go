package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	stockwatch "github.com/eugener/stockwatch/internal"
	"github.com/eugener/stockwatch/internal/telemetry"
)

// Webhook posts drops as JSON to a fixed URL.
type Webhook struct {
	url     string
	headers map[string]string
	http    *http.Client
	metrics *telemetry.Metrics
}

// webhookPayload is the body of one delivery.
type webhookPayload struct {
	Tracker string                 `json:"tracker"`
	CheckID string                 `json:"check_id"`
	Drop    *stockwatch.DropResult `json:"drop"`
}

// NewWebhook creates a Webhook. A nil client gets a 10s timeout; m may be nil.
func NewWebhook(url string, headers map[string]string, client *http.Client, m *telemetry.Metrics) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Webhook{url: url, headers: headers, http: client, metrics: m}
}

// Callback returns a handler that delivers each drop. Delivery failures are
// logged and never reach the tracker.
func (w *Webhook) Callback() stockwatch.Callback {
	return func(ctx context.Context, res *stockwatch.DropResult) {
		if res == nil {
			return
		}
		status := "ok"
		if err := w.Deliver(ctx, res); err != nil {
			status = "error"
			slog.LogAttrs(ctx, slog.LevelError, "webhook delivery failed",
				slog.String("tracker", stockwatch.TrackerFromContext(ctx)),
				slog.String("error", err.Error()),
			)
		}
		if w.metrics != nil {
			w.metrics.WebhookDeliveries.WithLabelValues(status).Inc()
		}
	}
}

// Deliver posts one drop and reports non-2xx responses as errors.
func (w *Webhook) Deliver(ctx context.Context, res *stockwatch.DropResult) error {
	checkID := stockwatch.CheckIDFromContext(ctx)
	body, err := json.Marshal(webhookPayload{
		Tracker: stockwatch.TrackerFromContext(ctx),
		CheckID: checkID,
		Drop:    res,
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.Must(uuid.NewV7()).String())
	if checkID != "" {
		req.Header.Set("X-Check-Id", checkID)
	}
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: %s returned %d: %w", w.url, resp.StatusCode, stockwatch.ErrUpstream)
	}
	return nil
}
