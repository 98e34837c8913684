// Package cache provides a Redis read-through cache for capsule lookups.
// The store stays authoritative; every capsule mutation invalidates its entry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"timevault/internal/ledger/models"
	"timevault/pkg/domain"
)

const keyPrefix = "timevault:capsule:"

// CapsuleCache caches capsule records by address. A nil *CapsuleCache is
// valid and behaves as a permanent miss, so callers need no enabled checks.
type CapsuleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New builds a cache over an existing Redis client.
func New(client *redis.Client, ttl time.Duration) *CapsuleCache {
	return &CapsuleCache{client: client, ttl: ttl}
}

// Get returns the cached capsule, or nil on miss or any cache failure.
func (c *CapsuleCache) Get(ctx context.Context, address domain.Address) *models.Capsule {
	if c == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, keyPrefix+address.String()).Bytes()
	if err != nil {
		return nil
	}
	var capsule models.Capsule
	if err := json.Unmarshal(raw, &capsule); err != nil {
		return nil
	}
	return &capsule
}

// Set stores a capsule with the configured TTL. Failures are ignored; the
// next read falls through to the store.
func (c *CapsuleCache) Set(ctx context.Context, capsule *models.Capsule) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(capsule)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, keyPrefix+capsule.Address.String(), raw, c.ttl).Err()
}

// Invalidate drops a capsule's cache entry after a mutation.
func (c *CapsuleCache) Invalidate(ctx context.Context, address domain.Address) error {
	if c == nil {
		return nil
	}
	err := c.client.Del(ctx, keyPrefix+address.String()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
