// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	stockwatch "github.com/eugener/stockwatch/internal"
	"github.com/eugener/stockwatch/internal/circuitbreaker"
)

// TrackerTypeHTTPJSON is the tracker type backed by checker.HTTPJSON.
const TrackerTypeHTTPJSON = "http_json"

// Config is the top-level stockwatch configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Auth      AuthConfig       `yaml:"auth"`
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry TelemetryConfig  `yaml:"telemetry"`
	HTTP      HTTPClientConfig `yaml:"http"`
	Dedup     DedupConfig      `yaml:"dedup"`
	Webhooks  []WebhookEntry   `yaml:"webhooks"`
	Trackers  []TrackerEntry   `yaml:"trackers"`
}

// ServerConfig holds admin HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CheckRateLimit  int           `yaml:"check_rate_limit"` // manual checks per minute per tracker; 0 = unlimited
}

// AuthConfig holds admin API authentication settings.
type AuthConfig struct {
	AdminKey string `yaml:"admin_key"` // empty disables auth on /v1 routes
}

// LoggingConfig controls the default slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

// HTTPClientConfig tunes the outbound client shared by checkers and webhooks.
type HTTPClientConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	DNSCache   bool          `yaml:"dns_cache"`
	DNSRefresh time.Duration `yaml:"dns_refresh"`
}

// DedupConfig controls suppression of repeat notifications.
type DedupConfig struct {
	Enabled bool          `yaml:"enabled"`
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"ttl"`
}

// WebhookEntry is a webhook notifier definition.
type WebhookEntry struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// TrackerEntry is a tracker definition in the config file.
type TrackerEntry struct {
	Name         string            `yaml:"name"`
	Type         string            `yaml:"type"`
	Enabled      *bool             `yaml:"enabled"`
	URL          string            `yaml:"url"`
	Headers      map[string]string `yaml:"headers"`
	Interval     time.Duration     `yaml:"interval"` // 0 = on demand only
	CheckOnStart bool              `yaml:"check_on_start"`
	OnError      string            `yaml:"on_error"`      // continue, stop
	DrainOnStop  *bool             `yaml:"drain_on_stop"` // default true
	TestMode     bool              `yaml:"test_mode"`
	Paths        PathsEntry        `yaml:"paths"`
	Auth         *AuthEntry        `yaml:"auth"`
	Breaker      *BreakerEntry     `yaml:"breaker"`
}

// BreakerEntry enables a circuit breaker on the tracker's endpoint.
// Zero fields take the circuitbreaker defaults.
type BreakerEntry struct {
	ErrorThreshold float64       `yaml:"error_threshold"`
	MinSamples     int           `yaml:"min_samples"`
	Window         int           `yaml:"window"`
	OpenTimeout    time.Duration `yaml:"open_timeout"`
}

// PathsEntry holds the gjson paths of an http_json tracker.
type PathsEntry struct {
	Available string `yaml:"available"`
	Links     string `yaml:"links"`
	Info      string `yaml:"info"`
}

// AuthEntry configures how a tracker authenticates to its endpoint.
type AuthEntry struct {
	Type         string   `yaml:"type"`   // "api_key", "oauth", "gcp", "aws_sigv4"
	Header       string   `yaml:"header"` // api_key only; default Authorization
	Prefix       string   `yaml:"prefix"` // api_key only; default "Bearer " for Authorization
	APIKey       string   `yaml:"api_key"`
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`  // oauth and gcp
	Region       string   `yaml:"region"`  // aws_sigv4
	Service      string   `yaml:"service"` // aws_sigv4; default execute-api
}

// IsEnabled reports whether the tracker is enabled (defaults to true when nil).
func (t TrackerEntry) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// ResolvedType returns Type if set, otherwise http_json.
func (t TrackerEntry) ResolvedType() string {
	if t.Type != "" {
		return t.Type
	}
	return TrackerTypeHTTPJSON
}

// ResolvedDrainOnStop returns whether queued checks are served after stop.
func (t TrackerEntry) ResolvedDrainOnStop() bool {
	return t.DrainOnStop == nil || *t.DrainOnStop
}

// ResolvedHeader returns the header an api_key auth entry writes to.
func (a AuthEntry) ResolvedHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "Authorization"
}

// ResolvedPrefix returns the value prefix of an api_key auth entry.
func (a AuthEntry) ResolvedPrefix() string {
	if a.Prefix != "" || a.Header != "" {
		return a.Prefix
	}
	return "Bearer "
}

// BreakerConfig merges the entry over the circuitbreaker defaults.
func (b BreakerEntry) BreakerConfig() circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig()
	if b.ErrorThreshold > 0 {
		cfg.ErrorThreshold = b.ErrorThreshold
	}
	if b.MinSamples > 0 {
		cfg.MinSamples = b.MinSamples
	}
	if b.Window > 0 {
		cfg.Window = b.Window
	}
	if b.OpenTimeout > 0 {
		cfg.OpenTimeout = b.OpenTimeout
	}
	return cfg
}

// ResolvedService returns the SigV4 service name of an aws_sigv4 entry.
func (a AuthEntry) ResolvedService() string {
	if a.Service != "" {
		return a.Service
	}
	return "execute-api"
}

// SlogLevel maps the configured level to a slog.Level (default info).
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate reports configuration errors that would prevent startup.
func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.Trackers))
	for i, t := range c.Trackers {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("trackers[%d]: name is required", i))
			continue
		}
		if seen[t.Name] {
			errs = append(errs, fmt.Errorf("trackers[%d]: duplicate name %q", i, t.Name))
		}
		seen[t.Name] = true

		if t.ResolvedType() != TrackerTypeHTTPJSON {
			errs = append(errs, fmt.Errorf("tracker %q: unknown type %q", t.Name, t.Type))
		}
		if t.URL == "" {
			errs = append(errs, fmt.Errorf("tracker %q: url is required", t.Name))
		}
		if t.Paths.Available == "" {
			errs = append(errs, fmt.Errorf("tracker %q: paths.available is required", t.Name))
		}
		if t.Interval < 0 {
			errs = append(errs, fmt.Errorf("tracker %q: interval must not be negative", t.Name))
		}
		switch t.OnError {
		case "", "continue", "stop":
		default:
			errs = append(errs, fmt.Errorf("tracker %q: on_error must be continue or stop", t.Name))
		}
		if b := t.Breaker; b != nil {
			if b.ErrorThreshold < 0 || b.ErrorThreshold > 1.5 {
				errs = append(errs, fmt.Errorf("tracker %q: breaker.error_threshold must be within [0, 1.5]", t.Name))
			}
			if b.MinSamples < 0 || b.Window < 0 || b.OpenTimeout < 0 {
				errs = append(errs, fmt.Errorf("tracker %q: breaker settings must not be negative", t.Name))
			}
			if b.Window > 0 && b.MinSamples > b.Window {
				errs = append(errs, fmt.Errorf("tracker %q: breaker.min_samples exceeds breaker.window", t.Name))
			}
		}
		if t.Auth != nil {
			switch t.Auth.Type {
			case "api_key":
				if t.Auth.APIKey == "" {
					errs = append(errs, fmt.Errorf("tracker %q: auth.api_key is required", t.Name))
				}
			case "oauth":
				if t.Auth.TokenURL == "" || t.Auth.ClientID == "" {
					errs = append(errs, fmt.Errorf("tracker %q: auth.token_url and auth.client_id are required", t.Name))
				}
			case "gcp":
			case "aws_sigv4":
				if t.Auth.Region == "" {
					errs = append(errs, fmt.Errorf("tracker %q: auth.region is required", t.Name))
				}
			default:
				errs = append(errs, fmt.Errorf("tracker %q: unknown auth type %q", t.Name, t.Auth.Type))
			}
		}
	}
	for i, w := range c.Webhooks {
		if w.URL == "" {
			errs = append(errs, fmt.Errorf("webhooks[%d]: url is required", i))
		}
	}
	if c.Server.CheckRateLimit < 0 {
		errs = append(errs, errors.New("server: check_rate_limit must not be negative"))
	}
	if c.Dedup.Enabled && c.Dedup.MaxSize <= 0 {
		errs = append(errs, errors.New("dedup: max_size must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w: %w", stockwatch.ErrBadRequest, errors.Join(errs...))
	}
	return nil
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file, expanding environment variables,
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	cfg := &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		HTTP: HTTPClientConfig{
			Timeout:    30 * time.Second,
			DNSCache:   true,
			DNSRefresh: 5 * time.Minute,
		},
		Dedup: DedupConfig{
			Enabled: true,
			MaxSize: 10_000,
			TTL:     24 * time.Hour,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
