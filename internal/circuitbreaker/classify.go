package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"os"
)

// httpStatusError is implemented by errors carrying an HTTP status code.
type httpStatusError interface {
	HTTPStatus() int
}

// ClassifyError returns the breaker weight of a check error.
//
// Weights:
//   - nil -> 0.0
//   - timeout (deadline exceeded) -> 1.5
//   - 403, 429 (blocked or throttled by the shop) -> 1.0
//   - 5xx -> 1.0
//   - other 4xx -> 0.5
//   - network and other errors -> 1.0
//
// Context cancellation is not the endpoint's fault and weighs 0.
func ClassifyError(err error) float64 {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return 1.5
	}
	var he httpStatusError
	if errors.As(err, &he) {
		return classifyStatus(he.HTTPStatus())
	}
	return 1.0
}

func classifyStatus(code int) float64 {
	switch {
	case code == http.StatusForbidden, code == http.StatusTooManyRequests:
		return 1.0
	case code >= 500:
		return 1.0
	case code >= 400:
		return 0.5
	default:
		return 0
	}
}
