package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OAuthStateStore is a short-lived CSRF nonce store for the OAuth login
// redirect, recovered from original_source/repositories/oauth_state.py
// (SPEC_FULL.md supplemented features). The OAuth provider exchange itself
// stays an external collaborator (spec §1 out of scope); only the nonce
// plumbing is in-scope.
type OAuthStateStore struct {
	cache *Cache
	ttl   time.Duration
}

// NewOAuthStateStore builds an OAuthStateStore with a short TTL (the OAuth
// redirect round trip, not a session lifetime).
func NewOAuthStateStore(c *Cache, ttl time.Duration) *OAuthStateStore {
	return &OAuthStateStore{cache: c, ttl: ttl}
}

func (s *OAuthStateStore) key(state string) string { return fmt.Sprintf("oauth-state-%s", state) }

// Issue generates and stores a new state value, to be echoed back by the
// provider on redirect.
func (s *OAuthStateStore) Issue(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := s.cache.rdb.Set(ctx, s.key(state), "1", s.ttl).Err(); err != nil {
		return "", fmt.Errorf("issuing oauth state: %w", err)
	}
	return state, nil
}

// Consume reports whether state was issued and not yet consumed, deleting
// it either way so it can't be replayed.
func (s *OAuthStateStore) Consume(ctx context.Context, state string) (bool, error) {
	n, err := s.cache.rdb.Del(ctx, s.key(state)).Result()
	if err != nil {
		return false, fmt.Errorf("consuming oauth state: %w", err)
	}
	return n > 0, nil
}
