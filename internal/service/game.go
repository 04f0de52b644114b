package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/AlexFangSW/typephoon/internal/apperr"
	"github.com/AlexFangSW/typephoon/internal/cache"
	"github.com/AlexFangSW/typephoon/internal/model"
	"github.com/AlexFangSW/typephoon/internal/store"
)

// GameService implements the in-game operations: countdown polling,
// statistics submission, and result retrieval (spec §4.5, §4.6, grounded
// on original_source/services/game.py).
type GameService struct {
	gameCache *cache.GameCache
	games     *store.GameStore
	results   *store.GameResultStore
}

// NewGameService wires the collaborators a GameService needs.
func NewGameService(gameCache *cache.GameCache, games *store.GameStore, results *store.GameResultStore) *GameService {
	return &GameService{gameCache: gameCache, games: games, results: results}
}

// Countdown reports the time remaining until gameID becomes playable.
// Returns apperr.CodeGameNotFound if the cache entry isn't populated yet
// (spec §4.1 step "b").
func (s *GameService) Countdown(ctx context.Context, gameID int64) (time.Duration, error) {
	startTime, err := s.gameCache.StartTime(ctx, gameID)
	if err != nil {
		return 0, err
	}
	if startTime.IsZero() {
		return 0, apperr.New(apperr.CodeGameNotFound, "game start time not found")
	}
	return time.Until(startTime), nil
}

// Words returns gameID's word list. Returns apperr.CodeGameNotFound if the
// cache entry isn't populated yet (spec §4.1 step "a", §8 "GET /game/words").
func (s *GameService) Words(ctx context.Context, gameID int64) ([]string, error) {
	words, err := s.gameCache.Words(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, apperr.New(apperr.CodeGameNotFound, "game words not found")
	}
	return words, nil
}

// Statistics is one player's finish submission (spec §4.6).
type Statistics struct {
	GameID   int64
	WPM      int
	WPMRaw   int
	Accuracy float64
}

// WriteStatistics records a finish: it increases the game's finish_count
// to compute the 1-based rank, inserts a game_results row for registered
// users, and merges the result into the game cache, where Ranking reads it
// (spec §4.6 steps 2-4). Step 2 requires
// confirming the game exists and the caller is one of its participants
// before any of that runs, so an unknown game or a non-participant POST
// never inflates finish_count or leaves an orphan result row.
func (s *GameService) WriteStatistics(ctx context.Context, stats Statistics, userID, username string, userType model.UserType) error {
	players, err := s.gameCache.Players(ctx, stats.GameID)
	if err != nil {
		return err
	}
	if len(players) == 0 {
		return apperr.New(apperr.CodeGameNotFound, "game not found")
	}
	if _, ok := players[userID]; !ok {
		return apperr.New(apperr.CodeNotAParticipant, "caller is not a participant of this game")
	}

	var rank int
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		game, err := s.games.IncreaseFinishCount(ctx, tx, stats.GameID)
		if err != nil {
			return err
		}
		rank = game.FinishCount

		if userType == model.UserTypeRegistered {
			if err := s.results.Insert(ctx, tx, model.GameResult{
				GameID:     stats.GameID,
				UserID:     userID,
				Rank:       rank,
				WPMRaw:     stats.WPMRaw,
				WPMCorrect: stats.WPM,
				Accuracy:   stats.Accuracy,
				FinishedAt: time.Now().UTC(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.gameCache.MergeResult(ctx, stats.GameID, userID, time.Now().UTC(), rank, stats.WPM, stats.WPMRaw, stats.Accuracy)
}

func (s *GameService) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.games.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Ranking returns every participant's current result, sorted by rank
// (unfinished players sort last, by player id, for stable output). Returns
// apperr.CodeGameNotFound if the game cache is empty (spec §4.6, §8 S4).
func (s *GameService) Ranking(ctx context.Context, gameID int64) ([]model.GamePlayer, error) {
	players, err := s.gameCache.Players(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if len(players) == 0 {
		return nil, apperr.New(apperr.CodeGameNotFound, "game not found")
	}

	ranking := make([]model.GamePlayer, 0, len(players))
	for _, p := range players {
		ranking = append(ranking, p)
	}
	sort.Slice(ranking, func(i, j int) bool {
		a, b := ranking[i], ranking[j]
		if a.IsFinished() != b.IsFinished() {
			return a.IsFinished()
		}
		if a.IsFinished() {
			return a.Rank < b.Rank
		}
		return a.ID < b.ID
	})
	return ranking, nil
}
