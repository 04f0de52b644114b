package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/AlexFangSW/typephoon/internal/apperr"
)

// GuestTokenStore is a one-shot key->token store: a guest token is stored
// under a random key delivered to the client over the streaming connection
// (GET_TOKEN), then consumed exactly once by GET /auth/guest-token (spec
// §3, §8 round-trip property).
type GuestTokenStore struct {
	cache *Cache
	ttl   time.Duration
}

// NewGuestTokenStore builds a GuestTokenStore with the given key TTL
// (typically the token's own refresh_duration, spec §3 Token payload).
func NewGuestTokenStore(c *Cache, ttl time.Duration) *GuestTokenStore {
	return &GuestTokenStore{cache: c, ttl: ttl}
}

func (s *GuestTokenStore) key(k string) string { return fmt.Sprintf("guest-token-%s", k) }

// Store saves token under a freshly generated random key and returns it.
func (s *GuestTokenStore) Store(ctx context.Context, token string) (string, error) {
	key := uuid.NewString()
	if err := s.cache.rdb.Set(ctx, s.key(key), token, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("storing guest token: %w", err)
	}
	return key, nil
}

// Get consumes and returns the token stored under key. A second call with
// the same key returns KEY_NOT_FOUND (spec §7, §8 round-trip property).
func (s *GuestTokenStore) Get(ctx context.Context, key string) (string, error) {
	rkey := s.key(key)
	token, err := s.cache.rdb.Get(ctx, rkey).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperr.New(apperr.CodeKeyNotFound, "guest token key not found")
	}
	if err != nil {
		return "", fmt.Errorf("getting guest token %q: %w", key, err)
	}
	s.cache.rdb.Del(ctx, rkey)
	return token, nil
}
