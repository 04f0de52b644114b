// Package service implements the business logic sitting between the HTTP
// API / consumers and the store, cache, token, and broker layers (spec §4).
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/AlexFangSW/typephoon/internal/apperr"
	"github.com/AlexFangSW/typephoon/internal/cache"
	"github.com/AlexFangSW/typephoon/internal/model"
	"github.com/AlexFangSW/typephoon/internal/store"
)

// LobbyService implements the lobby-membership read/leave operations used
// once a player is already queued in (spec §4.2, §4.3 step 5).
type LobbyService struct {
	games      *store.GameStore
	lobbyCache *cache.LobbyCache
	gameCache  *cache.GameCache
}

// NewLobbyService wires the stores a LobbyService needs.
func NewLobbyService(games *store.GameStore, lobbyCache *cache.LobbyCache, gameCache *cache.GameCache) *LobbyService {
	return &LobbyService{games: games, lobbyCache: lobbyCache, gameCache: gameCache}
}

// LobbyPlayers is the split the lobby UI needs: the caller's own entry, and
// everyone else currently in the lobby.
type LobbyPlayers struct {
	Me     *model.LobbyUserInfo
	Others []model.LobbyUserInfo
}

// Leave decrements the game's player count and drops userID from the lobby
// cache. It is not wired to SessionGroup removal: a dropped websocket leaves
// the lobby cache and player count as they are.
func (s *LobbyService) Leave(ctx context.Context, gameID int64, userID string) error {
	if _, err := s.games.DecreasePlayerCount(ctx, gameID); err != nil {
		return fmt.Errorf("leaving lobby: %w", err)
	}
	if err := s.lobbyCache.RemovePlayer(ctx, gameID, userID); err != nil {
		return fmt.Errorf("leaving lobby: %w", err)
	}
	return nil
}

// Players returns the caller's own lobby entry split from every other
// current member. Returns apperr.CodeNotAParticipant if the caller isn't a
// member (spec §4.7 "GET /lobby/players").
func (s *LobbyService) Players(ctx context.Context, gameID int64, userID string) (LobbyPlayers, error) {
	players, err := s.lobbyCache.Players(ctx, gameID)
	if err != nil {
		return LobbyPlayers{}, fmt.Errorf("listing lobby players: %w", err)
	}

	var result LobbyPlayers
	for id, info := range players {
		info := info
		if id == userID {
			result.Me = &info
		} else {
			result.Others = append(result.Others, info)
		}
	}
	if result.Me == nil {
		return LobbyPlayers{}, apperr.New(apperr.CodeNotAParticipant, "caller is not a member of this lobby")
	}
	return result, nil
}

// Countdown reports the time remaining until the lobby's countdown timer
// expires, clamped to 0. Returns apperr.CodeGameNotFound if no lobby
// start-time is on record (spec §4.7 "GET /lobby/countdown").
func (s *LobbyService) Countdown(ctx context.Context, gameID int64) (time.Duration, error) {
	startTime, err := s.lobbyCache.StartTime(ctx, gameID)
	if err != nil {
		return 0, err
	}
	if startTime.IsZero() {
		return 0, apperr.New(apperr.CodeGameNotFound, "lobby start time not found")
	}
	if left := time.Until(startTime); left > 0 {
		return left, nil
	}
	return 0, nil
}
