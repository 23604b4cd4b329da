package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AdminStatusCache holds the verified admin flag per user for a short TTL so
// admin routes do not re-verify on every request. Invalidate must be called
// whenever a user's admin status changes.
type AdminStatusCache interface {
	Get(ctx context.Context, userID string) (isAdmin bool, found bool, err error)
	Set(ctx context.Context, userID string, isAdmin bool) error
	Invalidate(ctx context.Context, userID string) error
}

const adminKeyPrefix = "admin_status:"

type RedisAdminCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdminCache(client *redis.Client, ttl time.Duration) *RedisAdminCache {
	return &RedisAdminCache{client: client, ttl: ttl}
}

func (c *RedisAdminCache) Get(ctx context.Context, userID string) (bool, bool, error) {
	val, err := c.client.Get(ctx, adminKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

func (c *RedisAdminCache) Set(ctx context.Context, userID string, isAdmin bool) error {
	val := "0"
	if isAdmin {
		val = "1"
	}
	return c.client.Set(ctx, adminKeyPrefix+userID, val, c.ttl).Err()
}

func (c *RedisAdminCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, adminKeyPrefix+userID).Err()
}

// MemoryAdminCache is a process-local fallback with the same contract, used
// when no Redis address is configured and in tests.
type MemoryAdminCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

type memoryEntry struct {
	isAdmin   bool
	expiresAt time.Time
}

func NewMemoryAdminCache(ttl time.Duration) *MemoryAdminCache {
	return &MemoryAdminCache{ttl: ttl, entries: make(map[string]memoryEntry)}
}

func (c *MemoryAdminCache) Get(_ context.Context, userID string) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	if !ok {
		return false, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, userID)
		return false, false, nil
	}
	return entry.isAdmin, true, nil
}

func (c *MemoryAdminCache) Set(_ context.Context, userID string, isAdmin bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = memoryEntry{isAdmin: isAdmin, expiresAt: time.Now().Add(c.ttl)}
	return nil
}

func (c *MemoryAdminCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	return nil
}
