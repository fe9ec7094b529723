package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/acquire_cooldown.lua
var acquireCooldownScript string

//go:embed scripts/consume_quota.lua
var consumeQuotaScript string

//go:embed scripts/release_quota.lua
var releaseQuotaScript string

type Client struct {
	rdb            *redis.Client
	cooldownScript *redis.Script
	quotaScript    *redis.Script
	releaseScript  *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:            rdb,
		cooldownScript: redis.NewScript(acquireCooldownScript),
		quotaScript:    redis.NewScript(consumeQuotaScript),
		releaseScript:  redis.NewScript(releaseQuotaScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireCooldown atomically claims the per-user tracking refresh window.
// Returns zero when the attempt wins; otherwise the remaining wait. The
// check-then-write runs inside a Lua script so concurrent refreshes cannot
// both win the same window.
func (c *Client) AcquireCooldown(ctx context.Context, userID int64, window time.Duration) (time.Duration, error) {
	key := fmt.Sprintf("tracking:cooldown:%d", userID)

	result, err := c.cooldownScript.Run(ctx, c.rdb, []string{key},
		time.Now().Unix(), int64(window.Seconds())).Result()
	if err != nil {
		return 0, fmt.Errorf("cooldown script failed: %w", err)
	}

	remaining, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type")
	}

	return time.Duration(remaining) * time.Second, nil
}

// MarkStaleCheck records that the automatic stale-tracking sweep ran for
// this user's session. Returns true only for the first call within the
// session TTL.
func (c *Client) MarkStaleCheck(ctx context.Context, userID int64, sessionTTL time.Duration) (bool, error) {
	key := fmt.Sprintf("tracking:stalecheck:%d", userID)
	return c.rdb.SetNX(ctx, key, time.Now().Unix(), sessionTTL).Result()
}

// ConsumeQuota atomically consumes count items from the user's monthly send
// quota. Returns the remaining quota and whether the consumption succeeded.
func (c *Client) ConsumeQuota(ctx context.Context, userID int64, count, limit int, ttl time.Duration) (int, bool, error) {
	key := quotaKey(userID)

	result, err := c.quotaScript.Run(ctx, c.rdb, []string{key},
		count, limit, int64(ttl.Seconds())).Result()
	if err != nil {
		return 0, false, fmt.Errorf("quota script failed: %w", err)
	}

	remaining, ok := result.(int64)
	if !ok {
		return 0, false, fmt.Errorf("unexpected script result type")
	}
	if remaining < 0 {
		return 0, false, nil
	}
	return int(remaining), true, nil
}

// ReleaseQuota gives back previously consumed quota, clamped at zero. Used
// when a submit fails after its quota was already claimed.
func (c *Client) ReleaseQuota(ctx context.Context, userID int64, count int) error {
	if err := c.releaseScript.Run(ctx, c.rdb, []string{quotaKey(userID)}, count).Err(); err != nil {
		return fmt.Errorf("quota release script failed: %w", err)
	}
	return nil
}

// RemainingQuota reports the user's unconsumed monthly quota
func (c *Client) RemainingQuota(ctx context.Context, userID int64, limit int) (int, error) {
	used, err := c.rdb.Get(ctx, quotaKey(userID)).Int()
	if err == redis.Nil {
		return limit, nil
	}
	if err != nil {
		return 0, err
	}
	if used >= limit {
		return 0, nil
	}
	return limit - used, nil
}

func quotaKey(userID int64) string {
	return fmt.Sprintf("quota:%d:%s", userID, time.Now().UTC().Format("2006-01"))
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
