package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// releaseLockScript deletes a lock key only when its value still matches the
// caller's owner token. Check and delete happen in one script so a holder
// whose lock already expired can never remove someone else's lock.
var releaseLockScript = redis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
	return redis.call('del', KEYS[1])
else
	return 0
end
`)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
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

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// TryLock attempts to set the lock key to the given owner token, only if the
// key is unset or expired. Returns false when another holder owns the key.
func (c *Client) TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", key), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock setnx failed: %w", err)
	}
	return ok, nil
}

// Unlock removes the lock key if it is still held by the given token.
// Returns false when the token no longer matches or the key is gone.
func (c *Client) Unlock(ctx context.Context, key, token string) (bool, error) {
	result, err := releaseLockScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", key)}, token).Result()
	if err != nil {
		return false, fmt.Errorf("unlock script failed: %w", err)
	}

	deleted, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected unlock script result type %T", result)
	}
	return deleted == 1, nil
}

// Claim marks an event id as processed with a TTL. Returns true only for the
// first claim; redeliveries of the same id get false.
func (c *Client) Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("event_processed:%s", eventID), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency claim failed: %w", err)
	}
	return ok, nil
}

// Unclaim releases a previously taken claim so the broker can redeliver the
// event after a transient processing failure.
func (c *Client) Unclaim(ctx context.Context, eventID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("event_processed:%s", eventID)).Err()
}
