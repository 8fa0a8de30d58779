// Package cache provides the in-memory sets used to suppress repeat
// notifications.
package cache

import (
	"context"
	"time"
)

// Set is a bounded set of keys whose entries expire.
type Set interface {
	// Contains reports whether key was added and has not expired.
	Contains(ctx context.Context, key string) bool
	// Add inserts key for ttl; re-adding refreshes the expiry.
	Add(ctx context.Context, key string, ttl time.Duration)
	// Remove deletes key.
	Remove(ctx context.Context, key string)
	// Purge removes all keys.
	Purge(ctx context.Context)
}
