// Package checker implements concrete stock check variants.
package checker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	stockwatch "github.com/eugener/stockwatch/internal"
)

const maxBody = 4 << 20

var _ stockwatch.Checker = (*HTTPJSON)(nil)

// HTTPJSONConfig describes a JSON stock endpoint. Paths use gjson syntax.
type HTTPJSONConfig struct {
	URL     string
	Headers map[string]string

	// AvailablePath selects the availability signal. It reports stock when it
	// resolves to true, a positive number, a truthy string or a non-empty
	// array or object.
	AvailablePath string
	// LinksPath selects an array of links (or a single link). Order is kept.
	LinksPath string
	// InfoPath selects the description text.
	InfoPath string
}

// HTTPJSON polls a JSON endpoint and reports a drop when the availability
// path is truthy.
type HTTPJSON struct {
	cfg  HTTPJSONConfig
	http *http.Client
	now  func() time.Time
}

// NewHTTPJSON creates an HTTPJSON checker. The provided client should have
// auth and timeouts configured via its transport chain.
func NewHTTPJSON(cfg HTTPJSONConfig, client *http.Client) (*HTTPJSON, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("checker: url is required: %w", stockwatch.ErrBadRequest)
	}
	if cfg.AvailablePath == "" {
		return nil, fmt.Errorf("checker: available path is required: %w", stockwatch.ErrBadRequest)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPJSON{cfg: cfg, http: client, now: time.Now}, nil
}

// Check fetches the endpoint once. A falsy availability signal is "no new
// stock" and returns (nil, nil).
func (c *HTTPJSON) Check(ctx context.Context) (*stockwatch.DropResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("checker: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checker: fetch %s: %w", c.cfg.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("checker: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: c.cfg.URL, Code: resp.StatusCode}
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("checker: %s returned invalid JSON: %w", c.cfg.URL, stockwatch.ErrUpstream)
	}

	doc := gjson.ParseBytes(body)
	if !truthy(doc.Get(c.cfg.AvailablePath)) {
		return nil, nil
	}

	var links []string
	if c.cfg.LinksPath != "" {
		l := doc.Get(c.cfg.LinksPath)
		switch {
		case l.IsArray():
			l.ForEach(func(_, v gjson.Result) bool {
				links = append(links, v.String())
				return true
			})
		case l.Exists():
			links = append(links, l.String())
		}
	}

	var info string
	if c.cfg.InfoPath != "" {
		info = doc.Get(c.cfg.InfoPath).String()
	}
	return stockwatch.NewDropResult(c.now(), links, info), nil
}

func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return r.Float() > 0
	case gjson.String:
		return r.Bool()
	case gjson.JSON:
		if r.IsArray() {
			return len(r.Array()) > 0
		}
		return len(r.Map()) > 0
	default:
		return false
	}
}

// StatusError reports a non-2xx response from a shop endpoint.
// It matches stockwatch.ErrUpstream.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("checker: %s returned %d", e.URL, e.Code)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.Code }

func (e *StatusError) Unwrap() error { return stockwatch.ErrUpstream }
