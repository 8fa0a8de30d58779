package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
)

var _ Set = (*Memory)(nil)

// Memory is an in-memory W-TinyLFU key set backed by otter. Each entry
// stores its own expiry so callers can use per-key TTLs.
type Memory struct {
	cache *otter.Cache[string, time.Time]
}

// NewMemory creates a key set with the given max entry count. defaultTTL
// bounds how long otter keeps any entry regardless of its own expiry.
func NewMemory(maxSize int, defaultTTL time.Duration) (*Memory, error) {
	c, err := otter.New[string, time.Time](&otter.Options[string, time.Time]{
		MaximumSize:      maxSize,
		ExpiryCalculator: otter.ExpiryWriting[string, time.Time](defaultTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Memory{cache: c}, nil
}

// Contains reports whether key is present and not expired.
func (m *Memory) Contains(_ context.Context, key string) bool {
	expiresAt, ok := m.cache.GetIfPresent(key)
	if !ok {
		return false
	}
	if time.Now().After(expiresAt) {
		m.cache.Invalidate(key)
		return false
	}
	return true
}

// Add stores key with a per-entry TTL.
func (m *Memory) Add(_ context.Context, key string, ttl time.Duration) {
	m.cache.Set(key, time.Now().Add(ttl))
}

// Remove deletes key from the set.
func (m *Memory) Remove(_ context.Context, key string) {
	m.cache.Invalidate(key)
}

// Purge removes all keys from the set.
func (m *Memory) Purge(_ context.Context) {
	m.cache.InvalidateAll()
}
