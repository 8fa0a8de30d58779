package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	stockwatch "github.com/eugener/stockwatch/internal"
)

func TestAdminKeyAuth(t *testing.T) {
	t.Parallel()

	a := NewAdminKeyAuth("s3cret")

	tests := []struct {
		name   string
		header string
		ok     bool
	}{
		{"valid", "Bearer s3cret", true},
		{"wrong key", "Bearer nope", false},
		{"missing bearer prefix", "s3cret", false},
		{"empty", "", false},
		{"bearer only", "Bearer ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/v1/trackers", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			err := a.Authenticate(r)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, stockwatch.ErrUnauthorized) {
				t.Errorf("err = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestNewAdminKeyAuthEmpty(t *testing.T) {
	t.Parallel()
	if NewAdminKeyAuth("") != nil {
		t.Error("empty key should disable auth")
	}
}
