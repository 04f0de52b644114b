package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlexFangSW/typephoon/internal/model"
)

// GameCache is the per-game player result map, start time, and word list,
// TTL-extended on transition into IN_GAME (spec §3).
type GameCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewGameCache builds a GameCache with the given entry TTL (longer than
// LobbyCache's, per spec §3).
func NewGameCache(c *Cache, ttl time.Duration) *GameCache {
	return &GameCache{cache: c, ttl: ttl}
}

func (g *GameCache) playersKey(gameID int64) string { return fmt.Sprintf("game-cache-%d-players", gameID) }
func (g *GameCache) startKey(gameID int64) string    { return fmt.Sprintf("game-cache-%d-start", gameID) }
func (g *GameCache) wordsKey(gameID int64) string    { return fmt.Sprintf("game-cache-%d-words", gameID) }

// Lock acquires the per-game advisory lock shared with LobbyCache's lock
// namespace (spec §5: "GameCache player-entry mutations use the same
// per-game advisory lock").
func (g *GameCache) Lock(ctx context.Context, gameID int64) (func(), error) {
	return g.cache.advisoryLock(ctx, gameID, "game-cache")
}

// Populate copies every LobbyCache member into GameCache, sets the game
// start time (lobby start + start_countdown), stores the word list, and —
// if autoClean is set — clears the LobbyCache entry (spec §4.1 step "a").
func (g *GameCache) Populate(ctx context.Context, gameID int64, lobby *LobbyCache, startCountdown time.Duration, words string, autoClean bool) error {
	players, err := lobby.Players(ctx, gameID)
	if err != nil {
		return err
	}
	lobbyStart, err := lobby.StartTime(ctx, gameID)
	if err != nil {
		return err
	}
	gameStart := lobbyStart.Add(startCountdown)
	if lobbyStart.IsZero() {
		gameStart = time.Now().UTC().Add(startCountdown)
	}

	release, err := g.Lock(ctx, gameID)
	if err != nil {
		return err
	}
	defer release()

	pipe := g.cache.rdb.TxPipeline()
	for userID, info := range players {
		entry := model.GamePlayer{ID: info.ID, Name: info.Name}
		data, merr := json.Marshal(entry)
		if merr != nil {
			return fmt.Errorf("marshaling game player %q: %w", userID, merr)
		}
		pipe.HSet(ctx, g.playersKey(gameID), userID, data)
	}
	pipe.Expire(ctx, g.playersKey(gameID), g.ttl)
	pipe.Set(ctx, g.startKey(gameID), gameStart.Format(time.RFC3339), g.ttl)
	pipe.Set(ctx, g.wordsKey(gameID), words, g.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("populating game cache for game %d: %w", gameID, err)
	}

	if autoClean {
		if err := lobby.Clear(ctx, gameID); err != nil {
			return err
		}
	}
	return nil
}

// Players returns every player entry for gameID.
func (g *GameCache) Players(ctx context.Context, gameID int64) (map[string]model.GamePlayer, error) {
	raw, err := g.cache.rdb.HGetAll(ctx, g.playersKey(gameID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing game players for game %d: %w", gameID, err)
	}
	out := make(map[string]model.GamePlayer, len(raw))
	for userID, data := range raw {
		var entry model.GamePlayer
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, fmt.Errorf("unmarshaling game player %q: %w", userID, err)
		}
		out[userID] = entry
	}
	return out, nil
}

// MergeResult merges a finish result into userID's entry, under the
// per-game advisory lock (spec §4.6 step 4).
func (g *GameCache) MergeResult(ctx context.Context, gameID int64, userID string, finishedAt time.Time, rank, wpm, wpmRaw int, accuracy float64) error {
	release, err := g.Lock(ctx, gameID)
	if err != nil {
		return err
	}
	defer release()

	raw, err := g.cache.rdb.HGet(ctx, g.playersKey(gameID), userID).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("merging result: user %q not in game %d cache", userID, gameID)
	}
	if err != nil {
		return fmt.Errorf("reading game player %q: %w", userID, err)
	}

	var entry model.GamePlayer
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return fmt.Errorf("unmarshaling game player %q: %w", userID, err)
	}
	entry.Finished = &finishedAt
	entry.Rank = rank
	entry.WPM = wpm
	entry.WPMRaw = wpmRaw
	entry.Accuracy = accuracy

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling game player %q: %w", userID, err)
	}
	if err := g.cache.rdb.HSet(ctx, g.playersKey(gameID), userID, data).Err(); err != nil {
		return fmt.Errorf("storing game player %q: %w", userID, err)
	}
	return nil
}

// StartTime returns the game's playable-now time, or the zero time if
// unset.
func (g *GameCache) StartTime(ctx context.Context, gameID int64) (time.Time, error) {
	raw, err := g.cache.rdb.Get(ctx, g.startKey(gameID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("getting game start time for game %d: %w", gameID, err)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing game start time for game %d: %w", gameID, err)
	}
	return t, nil
}

// Words returns the space-joined word list for gameID, splitting it back
// into a slice for callers (spec §3).
func (g *GameCache) Words(ctx context.Context, gameID int64) ([]string, error) {
	raw, err := g.cache.rdb.Get(ctx, g.wordsKey(gameID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting words for game %d: %w", gameID, err)
	}
	if raw == "" {
		return nil, nil
	}
	return strings.Split(raw, " "), nil
}

// Clear removes every GameCache key for gameID (spec §4.5, game-cleanup
// consumer).
func (g *GameCache) Clear(ctx context.Context, gameID int64) error {
	if err := g.cache.rdb.Del(ctx, g.playersKey(gameID), g.startKey(gameID), g.wordsKey(gameID)).Err(); err != nil {
		return fmt.Errorf("clearing game cache for game %d: %w", gameID, err)
	}
	return nil
}
