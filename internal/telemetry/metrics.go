// Package telemetry provides observability primitives for stockwatch.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Check outcomes used as the "outcome" label of ChecksTotal.
const (
	OutcomeDrop  = "drop"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Metrics holds all Prometheus collectors for stockwatch.
type Metrics struct {
	reg prometheus.Registerer

	ChecksTotal       *prometheus.CounterVec
	CheckDuration     *prometheus.HistogramVec
	DropsTotal        *prometheus.CounterVec
	DropsSuppressed   *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	ActiveRequests    prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reg: reg,

		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockwatch",
			Name:      "checks_total",
			Help:      "Total stock checks by outcome.",
		}, []string{"tracker", "outcome"}),

		CheckDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "stockwatch",
			Name:                            "check_duration_seconds",
			Help:                            "Stock check duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"tracker"}),

		DropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockwatch",
			Name:      "drops_total",
			Help:      "Total drops reported to notifiers.",
		}, []string{"tracker"}),

		DropsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockwatch",
			Name:      "drops_suppressed_total",
			Help:      "Total drops suppressed as already notified.",
		}, []string{"tracker"}),

		WebhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockwatch",
			Name:      "webhook_deliveries_total",
			Help:      "Total webhook deliveries by result.",
		}, []string{"status"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockwatch",
			Name:      "http_requests_total",
			Help:      "Total number of admin HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "stockwatch",
			Name:                            "http_request_duration_seconds",
			Help:                            "Admin HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stockwatch",
			Name:      "http_active_requests",
			Help:      "Number of currently active admin requests.",
		}),
	}

	reg.MustRegister(
		m.ChecksTotal,
		m.CheckDuration,
		m.DropsTotal,
		m.DropsSuppressed,
		m.WebhookDeliveries,
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
	)

	return m
}

// PendingSource reports the number of queued checks of a tracker.
type PendingSource interface {
	Name() string
	Pending() int
}

// WatchPending registers a gauge that reads the tracker's queue depth at
// scrape time.
func (m *Metrics) WatchPending(src PendingSource) error {
	return m.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "stockwatch",
		Name:        "pending_checks",
		Help:        "Checks requested but not yet started.",
		ConstLabels: prometheus.Labels{"tracker": src.Name()},
	}, func() float64 { return float64(src.Pending()) }))
}
