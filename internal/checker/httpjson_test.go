package checker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	stockwatch "github.com/eugener/stockwatch/internal"
)

func newTestChecker(t *testing.T, body string, status int, cfg HTTPJSONConfig) *HTTPJSON {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q, want application/json", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	cfg.URL = srv.URL
	c, err := NewHTTPJSON(cfg, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	c.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestHTTPJSON_Drop(t *testing.T) {
	t.Parallel()

	body := `{"in_stock":true,"title":"GPU restock","items":[{"url":"https://shop.example/1"},{"url":"https://shop.example/2"}]}`
	c := newTestChecker(t, body, http.StatusOK, HTTPJSONConfig{
		AvailablePath: "in_stock",
		LinksPath:     "items.#.url",
		InfoPath:      "title",
	})

	res, err := c.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res == nil {
		t.Fatal("expected a drop")
	}
	want := []string{"https://shop.example/1", "https://shop.example/2"}
	if !slices.Equal(res.Links(), want) {
		t.Errorf("links = %v, want %v", res.Links(), want)
	}
	if res.Info() != "GPU restock" {
		t.Errorf("info = %q", res.Info())
	}
	if !res.Date().Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", res.Date())
	}
}

func TestHTTPJSON_Availability(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want bool
	}{
		{"bool true", `{"a":true}`, true},
		{"bool false", `{"a":false}`, false},
		{"positive count", `{"a":3}`, true},
		{"zero count", `{"a":0}`, false},
		{"string true", `{"a":"true"}`, true},
		{"string no", `{"a":"no"}`, false},
		{"non-empty array", `{"a":[1]}`, true},
		{"empty array", `{"a":[]}`, false},
		{"empty object", `{"a":{}}`, false},
		{"missing", `{"b":true}`, false},
		{"null", `{"a":null}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestChecker(t, tt.body, http.StatusOK, HTTPJSONConfig{AvailablePath: "a"})
			res, err := c.Check(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if got := res != nil; got != tt.want {
				t.Errorf("drop = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPJSON_SingleLinkAndNoPaths(t *testing.T) {
	t.Parallel()

	c := newTestChecker(t, `{"ok":true,"link":"https://shop.example/x"}`, http.StatusOK, HTTPJSONConfig{
		AvailablePath: "ok",
		LinksPath:     "link",
	})
	res, err := c.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(res.Links(), []string{"https://shop.example/x"}) {
		t.Errorf("links = %v", res.Links())
	}
	if res.Info() != "" {
		t.Errorf("info = %q, want empty", res.Info())
	}
}

func TestHTTPJSON_UpstreamErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"server error", `{"error":"down"}`, http.StatusBadGateway},
		{"not found", `{}`, http.StatusNotFound},
		{"invalid json", `<html>`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestChecker(t, tt.body, tt.status, HTTPJSONConfig{AvailablePath: "a"})
			_, err := c.Check(context.Background())
			if !errors.Is(err, stockwatch.ErrUpstream) {
				t.Errorf("err = %v, want ErrUpstream", err)
			}
			var se *StatusError
			if tt.status != http.StatusOK {
				if !errors.As(err, &se) || se.HTTPStatus() != tt.status {
					t.Errorf("err = %v, want StatusError %d", err, tt.status)
				}
			}
		})
	}
}

func TestHTTPJSON_Headers(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "stockwatch-test" {
			t.Errorf("User-Agent = %q", got)
		}
		io.WriteString(w, `{"a":false}`)
	}))
	defer srv.Close()

	c, err := NewHTTPJSON(HTTPJSONConfig{
		URL:           srv.URL,
		AvailablePath: "a",
		Headers:       map[string]string{"User-Agent": "stockwatch-test"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Check(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestNewHTTPJSON_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewHTTPJSON(HTTPJSONConfig{AvailablePath: "a"}, nil); !errors.Is(err, stockwatch.ErrBadRequest) {
		t.Errorf("missing url err = %v", err)
	}
	if _, err := NewHTTPJSON(HTTPJSONConfig{URL: "http://x"}, nil); !errors.Is(err, stockwatch.ErrBadRequest) {
		t.Errorf("missing path err = %v", err)
	}
}
