package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/dnscache"
	"go.opentelemetry.io/otel/trace"

	stockwatch "github.com/eugener/stockwatch/internal"
	"github.com/eugener/stockwatch/internal/auth"
	"github.com/eugener/stockwatch/internal/cache"
	"github.com/eugener/stockwatch/internal/config"
	"github.com/eugener/stockwatch/internal/httpclient"
	"github.com/eugener/stockwatch/internal/notify"
	"github.com/eugener/stockwatch/internal/ratelimit"
	"github.com/eugener/stockwatch/internal/server"
	"github.com/eugener/stockwatch/internal/telemetry"
	"github.com/eugener/stockwatch/internal/tracker"
	"github.com/eugener/stockwatch/internal/worker"
)

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.Logging)

	slog.Info("starting stockwatch", "version", version, "addr", cfg.Server.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Tracing
	var tracer trace.Tracer
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(ctx, telemetry.TracingOptions{
			Endpoint:       cfg.Telemetry.Tracing.Endpoint,
			SampleRate:     cfg.Telemetry.Tracing.SampleRate,
			ServiceVersion: version,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Error("tracing shutdown", "error", err)
			}
		}()
		tracer = telemetry.Tracer("github.com/eugener/stockwatch")
	}

	// Metrics
	var (
		metrics        *telemetry.Metrics
		metricsHandler http.Handler
	)
	if cfg.Telemetry.Metrics.Enabled {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = telemetry.NewMetrics(promReg)
		metricsHandler = promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})
	}

	// Outbound HTTP
	var resolver *dnscache.Resolver
	if cfg.HTTP.DNSCache {
		resolver = &dnscache.Resolver{}
	}
	transport := httpclient.NewTransport(resolver, true)
	outbound := &http.Client{Transport: transport, Timeout: cfg.HTTP.Timeout}

	// Notifiers: log every outcome, count and remember each drop, and hand
	// new drops to the webhooks through the dispatcher.
	recent := notify.NewRecent()
	webhooks := make([]stockwatch.Callback, 0, len(cfg.Webhooks))
	for _, w := range cfg.Webhooks {
		webhooks = append(webhooks, notify.NewWebhook(w.URL, w.Headers, outbound, metrics).Callback())
	}
	dispatcher := worker.NewDispatcher(notify.Fanout(webhooks...))

	var forward stockwatch.Callback = dispatcher.Callback()
	if cfg.Dedup.Enabled {
		seen, err := cache.NewMemory(cfg.Dedup.MaxSize, cfg.Dedup.TTL)
		if err != nil {
			return fmt.Errorf("dedup cache: %w", err)
		}
		forward = notify.Dedup(forward, seen, cfg.Dedup.TTL, metrics)
	}
	callback := notify.Fanout(
		notify.Log(),
		notify.DropsOnly(notify.Fanout(notify.Count(metrics), recent.Callback(), forward)),
	)

	// Trackers
	trackers := tracker.NewRegistry()
	schedules, err := config.Bootstrap(ctx, cfg, trackers, config.Deps{
		Transport: transport,
		Timeout:   cfg.HTTP.Timeout,
		Callback:  callback,
		Metrics:   metrics,
		Tracer:    tracer,
		Logger:    slog.Default(),
	})
	if err != nil {
		return err
	}

	// The dispatcher outlives the trackers so drops from their last checks
	// still reach the webhooks.
	runner := worker.NewRunner(worker.NewScheduler(schedules...))
	for _, t := range trackers.List() {
		runner.Add(t)
	}
	runner.AddDownstream(dispatcher)

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	if resolver != nil && cfg.HTTP.DNSRefresh > 0 {
		go httpclient.RefreshDNS(workerCtx, resolver, cfg.HTTP.DNSRefresh)
	}
	workerErr := make(chan error, 1)
	go func() { workerErr <- runner.Run(workerCtx) }()

	// Admin API
	var adminAuth server.Authenticator
	if a := auth.NewAdminKeyAuth(cfg.Auth.AdminKey); a != nil {
		adminAuth = a
	} else {
		slog.Warn("auth.admin_key not set, admin API is unauthenticated")
	}
	handler := server.New(server.Deps{
		Trackers:       trackers,
		Recent:         recent,
		Auth:           adminAuth,
		ReadyCheck:     readyCheck(trackers),
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		CheckLimiter:   ratelimit.New(cfg.Server.CheckRateLimit),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("stockwatch ready", "addr", cfg.Server.Addr, "trackers", len(schedules))

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		runErr = err
	case err := <-workerErr:
		// A tracker with on_error: stop ended the group.
		runErr = err
		workerErr = nil
	}

	// Stop trackers through their gates; in-flight checks finish first.
	cancelWorkers()
	if workerErr != nil {
		if err := <-workerErr; err != nil && runErr == nil {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}

	if runErr != nil {
		return runErr
	}
	slog.Info("stockwatch stopped")
	return nil
}

func setupLogging(cfg config.LoggingConfig) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// readyCheck reports ready while at least one tracker is running, or when
// none are configured.
func readyCheck(trackers *tracker.Registry) server.ReadyChecker {
	return func(context.Context) error {
		list := trackers.List()
		if len(list) == 0 {
			return nil
		}
		for _, t := range list {
			if t.State() == tracker.Running {
				return nil
			}
		}
		return errors.New("no tracker running")
	}
}
