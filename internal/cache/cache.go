// Package cache is the ephemeral key-value store for per-game lobby and
// in-game state (spec §3, §4). Hot reads go here; lifecycle transitions are
// still committed through internal/store first.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache wraps a single go-redis client shared by LobbyCache, GameCache, and
// the guest-token store, grouped the way spec §3 groups the entries.
type Cache struct {
	rdb *redis.Client
}

// New connects to Redis and returns a Cache handle.
func New(addr string, db int) *Cache {
	return &Cache{rdb: redis.NewClient(&redis.Options{Addr: addr, DB: db})}
}

// Close closes the underlying Redis client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Ping checks Redis reachability with the given timeout.
func (c *Cache) Ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}

// advisoryLock acquires a per-game SETNX-style lock, retrying briefly until
// it succeeds, used to linearize LobbyCache/GameCache read-modify-write
// sequences the way spec §5 describes ("a per-game advisory lock in the
// key-value store").
func (c *Cache) advisoryLock(ctx context.Context, gameID int64, prefix string) (func(), error) {
	key := fmt.Sprintf("%s-%d-lock", prefix, gameID)
	token := uuid.NewString()

	deadline := time.Now().Add(5 * time.Second)
	for {
		ok, err := c.rdb.SetNX(ctx, key, token, 10*time.Second).Result()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %q: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out acquiring lock %q", key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}

	release := func() {
		// best-effort; a crash between lock and release just leaves a
		// short-lived TTL'd key behind, never a permanent deadlock.
		c.rdb.Del(context.Background(), key)
	}
	return release, nil
}
