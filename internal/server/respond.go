package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	stockwatch "github.com/eugener/stockwatch/internal"
)

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func errorResponse(msg string) apiError {
	var e apiError
	e.Error.Message = msg
	e.Error.Type = "invalid_request_error"
	return e
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, stockwatch.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, stockwatch.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, stockwatch.ErrConflict), errors.Is(err, stockwatch.ErrStopped):
		return http.StatusConflict
	case errors.Is(err, stockwatch.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, stockwatch.ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and writes a sanitized message. Internal
// errors are logged in full and never echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	switch status {
	case http.StatusUnauthorized:
		writeJSON(w, status, errorResponse("unauthorized"))
	case http.StatusNotFound:
		writeJSON(w, status, errorResponse("not found"))
	case http.StatusConflict:
		writeJSON(w, status, errorResponse("conflict"))
	case http.StatusTooManyRequests:
		writeJSON(w, status, errorResponse("rate limited"))
	case http.StatusBadRequest:
		writeJSON(w, status, errorResponse("bad request"))
	default:
		slog.LogAttrs(r.Context(), slog.LevelError, "admin error",
			slog.String("error", err.Error()),
			slog.String("request_id", stockwatch.RequestIDFromContext(r.Context())),
		)
		writeJSON(w, status, errorResponse("internal error"))
	}
}

var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
