// Package cache memoizes rendered dashboard payloads. Charts are
// expensive to aggregate and every connected client wants the same
// bytes, so results are cached by operation name and arguments for a
// bounded TTL. Within the TTL repeated calls return the identical byte
// slice.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ReneKroon/ttlcache/v2"
)

// DefaultTTL bounds payload staleness when the caller does not override
// it; it matches the fastest broadcast cadence so cached pages are never
// older than one cycle.
const DefaultTTL = 60 * time.Second

// Memoizer caches computed payloads by derived key.
type Memoizer struct {
	cache *ttlcache.Cache
	ttl   time.Duration
}

// New builds a memoizer with the given default TTL; zero means
// DefaultTTL. Entries expire strictly on schedule, reads do not extend
// them.
func New(ttl time.Duration) *Memoizer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := ttlcache.NewCache()
	c.SetTTL(ttl)
	c.SkipTTLExtensionOnHit(true)
	return &Memoizer{cache: c, ttl: ttl}
}

// Close stops the expiration worker.
func (m *Memoizer) Close() {
	m.cache.Close()
}

// Key derives the cache key for an operation and its arguments. Arguments
// are serialized to canonical JSON; times normalize to UTC RFC3339 so the
// same instant in different zones maps to the same key. An unserializable
// argument is a hard error, never a silent cache bypass.
func Key(name string, args ...interface{}) (string, error) {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for i, arg := range args {
		if t, ok := arg.(time.Time); ok {
			arg = t.UTC().Format(time.RFC3339)
		}
		b, err := json.Marshal(arg)
		if err != nil {
			return "", fmt.Errorf("cache key %s arg %d: %w", name, i, err)
		}
		parts = append(parts, string(b))
	}
	return strings.Join(parts, "|"), nil
}

// Do returns the cached payload for the key, computing and storing it on
// a miss. Compute errors are returned uncached so the next caller
// retries.
func (m *Memoizer) Do(ctx context.Context, key string, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	return m.DoTTL(ctx, key, m.ttl, compute)
}

// DoTTL is Do with a per-entry TTL, for payload families broadcast on a
// slower cadence than the default.
func (m *Memoizer) DoTTL(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if v, err := m.cache.Get(key); err == nil {
		return v.([]byte), nil
	} else if !errors.Is(err, ttlcache.ErrNotFound) {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}

	payload, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.cache.SetWithTTL(key, payload, ttl); err != nil {
		return nil, fmt.Errorf("cache set %s: %w", key, err)
	}
	return payload, nil
}
