package stockwatch

import "errors"

// Sentinel errors for the stockwatch domain.
var (
	ErrAbstractCheck  = errors.New("check invoked on unspecialized tracker")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrAlreadyStarted = errors.New("tracker already started")
	ErrStopped        = errors.New("tracker stopped")
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrUpstream       = errors.New("upstream error")
	ErrCircuitOpen    = errors.New("circuit open")
	ErrRateLimited    = errors.New("rate limited")
)
