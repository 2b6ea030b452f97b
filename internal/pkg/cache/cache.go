package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is the key/value contract used for cache-aside reads. It is never
// the system of record: every operation is best-effort, and implementations
// must swallow backend failures and degrade to "always miss" so a dead cache
// can never fail a caller's operation.
type Cache interface {
	// Get returns the stored value and true on a hit.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value under key with a per-key expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes a single key.
	Delete(ctx context.Context, key string)
	// DeleteByPrefix removes every key starting with prefix and reports how
	// many were removed.
	DeleteByPrefix(ctx context.Context, prefix string) int
}

// GetJSON reads key and unmarshals it into v. Returns false on miss or on a
// corrupt entry (a corrupt entry is treated as a miss, not an error).
func GetJSON(ctx context.Context, c Cache, key string, v interface{}) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		c.Delete(ctx, key)
		return false
	}
	return true
}

// SetJSON marshals v and stores it under key. Marshal failures are dropped,
// consistent with the best-effort contract.
func SetJSON(ctx context.Context, c Cache, key string, v interface{}, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Set(ctx, key, raw, ttl)
}
