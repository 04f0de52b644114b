package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlexFangSW/typephoon/internal/model"
)

// LobbyCache is the per-game `user_id -> UserInfo` map plus a lobby
// start-time, TTL'd and cleared on promotion to IN_GAME (spec §3).
type LobbyCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewLobbyCache builds a LobbyCache with the given entry TTL.
func NewLobbyCache(c *Cache, ttl time.Duration) *LobbyCache {
	return &LobbyCache{cache: c, ttl: ttl}
}

func (l *LobbyCache) playersKey(gameID int64) string { return fmt.Sprintf("lobby-cache-%d-players", gameID) }
func (l *LobbyCache) startKey(gameID int64) string    { return fmt.Sprintf("lobby-cache-%d-start", gameID) }

// Lock acquires the per-game advisory lock used to linearize AddPlayer
// against concurrent joins (spec §5). Callers must defer the returned
// release.
func (l *LobbyCache) Lock(ctx context.Context, gameID int64) (func(), error) {
	return l.cache.advisoryLock(ctx, gameID, "game-cache")
}

// IsNewPlayer reports whether userID is not yet a member of gameID's lobby.
// Used by the RECONNECT path to decide whether capacity must be checked
// (spec §4.3 step 3).
func (l *LobbyCache) IsNewPlayer(ctx context.Context, gameID int64, userID string) (bool, error) {
	exists, err := l.cache.rdb.HExists(ctx, l.playersKey(gameID), userID).Result()
	if err != nil {
		return false, fmt.Errorf("checking lobby membership for game %d: %w", gameID, err)
	}
	return !exists, nil
}

// AddPlayer adds userInfo to gameID's lobby map if absent, refreshing TTL,
// and reports whether the player was newly added (spec §4.3 step 4). The
// caller must hold the Lock for gameID.
func (l *LobbyCache) AddPlayer(ctx context.Context, gameID int64, info model.LobbyUserInfo) (bool, error) {
	key := l.playersKey(gameID)
	isNew, err := l.IsNewPlayer(ctx, gameID, info.ID)
	if err != nil {
		return false, err
	}
	if isNew {
		data, err := json.Marshal(info)
		if err != nil {
			return false, fmt.Errorf("marshaling lobby user info: %w", err)
		}
		if err := l.cache.rdb.HSet(ctx, key, info.ID, data).Err(); err != nil {
			return false, fmt.Errorf("adding player %q to lobby %d: %w", info.ID, gameID, err)
		}
	}
	l.cache.rdb.Expire(ctx, key, l.ttl)
	return isNew, nil
}

// RemovePlayer removes userID from gameID's lobby map. Its only caller is
// LobbyService.Leave.
func (l *LobbyCache) RemovePlayer(ctx context.Context, gameID int64, userID string) error {
	if err := l.cache.rdb.HDel(ctx, l.playersKey(gameID), userID).Err(); err != nil {
		return fmt.Errorf("removing player %q from lobby %d: %w", userID, gameID, err)
	}
	return nil
}

// Players returns every member of gameID's lobby.
func (l *LobbyCache) Players(ctx context.Context, gameID int64) (map[string]model.LobbyUserInfo, error) {
	raw, err := l.cache.rdb.HGetAll(ctx, l.playersKey(gameID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing lobby players for game %d: %w", gameID, err)
	}
	out := make(map[string]model.LobbyUserInfo, len(raw))
	for userID, data := range raw {
		var info model.LobbyUserInfo
		if err := json.Unmarshal([]byte(data), &info); err != nil {
			return nil, fmt.Errorf("unmarshaling lobby user %q: %w", userID, err)
		}
		out[userID] = info
	}
	return out, nil
}

// SetStartTime records when the lobby countdown will expire (spec §4.3
// step 3c).
func (l *LobbyCache) SetStartTime(ctx context.Context, gameID int64, startTime time.Time) error {
	if err := l.cache.rdb.Set(ctx, l.startKey(gameID), startTime.Format(time.RFC3339), l.ttl).Err(); err != nil {
		return fmt.Errorf("setting lobby start time for game %d: %w", gameID, err)
	}
	return nil
}

// StartTime returns the recorded lobby start time, or the zero time if
// unset (already cleared or expired).
func (l *LobbyCache) StartTime(ctx context.Context, gameID int64) (time.Time, error) {
	raw, err := l.cache.rdb.Get(ctx, l.startKey(gameID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("getting lobby start time for game %d: %w", gameID, err)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing lobby start time for game %d: %w", gameID, err)
	}
	return t, nil
}

// Clear removes both the player map and the start time for gameID (spec
// §4.1 step "a": cleared on promotion to IN_GAME).
func (l *LobbyCache) Clear(ctx context.Context, gameID int64) error {
	if err := l.cache.rdb.Del(ctx, l.playersKey(gameID), l.startKey(gameID)).Err(); err != nil {
		return fmt.Errorf("clearing lobby cache for game %d: %w", gameID, err)
	}
	return nil
}
