package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AlexFangSW/typephoon/internal/model"
)

// GameResultStore persists one row per finishing registered user (spec §3,
// §4.6). Guests contribute to rank but never get a row here.
type GameResultStore struct {
	pool *pgxpool.Pool
}

// NewGameResultStore builds a GameResultStore over the shared pool.
func NewGameResultStore(s *Store) *GameResultStore {
	return &GameResultStore{pool: s.pool}
}

// Insert writes one GameResult row inside tx, alongside the finish_count
// update that produced its rank (spec §4.6 step 3).
func (s *GameResultStore) Insert(ctx context.Context, tx pgx.Tx, r model.GameResult) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO game_results (game_id, user_id, rank, wpm_raw, wpm_correct, accuracy, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.GameID, r.UserID, r.Rank, r.WPMRaw, r.WPMCorrect, r.Accuracy, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting game result for game %d user %q: %w", r.GameID, r.UserID, err)
	}
	return nil
}

// ProfileStats is the aggregate computed for GET /profile/statistics
// (spec §4.7): best WPM, and averages over the last 10 games and over all
// games, coalesced to 0 when the user has no finished games.
type ProfileStats struct {
	TotalGames int
	WPMBest    int
	WPMAvg10   float64
	WPMAvgAll  float64
	AccAvg10   float64
	AccAvgAll  float64
}

// Stats computes ProfileStats for userID using two aggregations: a
// last-10 CTE and an all-time CTE (spec §4.7).
func (s *GameResultStore) Stats(ctx context.Context, userID string) (ProfileStats, error) {
	const query = `
		WITH last_ten AS (
			SELECT wpm_correct, accuracy
			FROM game_results
			WHERE user_id = $1
			ORDER BY finished_at DESC
			LIMIT 10
		)
		SELECT
			(SELECT COUNT(*) FROM game_results WHERE user_id = $1),
			COALESCE((SELECT MAX(wpm_correct) FROM game_results WHERE user_id = $1), 0),
			COALESCE((SELECT AVG(wpm_correct) FROM last_ten), 0),
			COALESCE((SELECT AVG(wpm_correct) FROM game_results WHERE user_id = $1), 0),
			COALESCE((SELECT AVG(accuracy) FROM last_ten), 0),
			COALESCE((SELECT AVG(accuracy) FROM game_results WHERE user_id = $1), 0)
	`
	var stats ProfileStats
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&stats.TotalGames, &stats.WPMBest, &stats.WPMAvg10, &stats.WPMAvgAll, &stats.AccAvg10, &stats.AccAvgAll,
	)
	if err != nil {
		return ProfileStats{}, fmt.Errorf("computing profile stats for %q: %w", userID, err)
	}
	return stats, nil
}

// History returns one page of a user's finished games, newest first
// (spec §4.7).
func (s *GameResultStore) History(ctx context.Context, userID string, page, size int) ([]model.GameResult, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	offset := (page - 1) * size

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM game_results WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting history for %q: %w", userID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT game_id, user_id, rank, wpm_raw, wpm_correct, accuracy, finished_at
		FROM game_results
		WHERE user_id = $1
		ORDER BY finished_at DESC
		LIMIT $2 OFFSET $3`,
		userID, size, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying history for %q: %w", userID, err)
	}
	defer rows.Close()

	var results []model.GameResult
	for rows.Next() {
		var r model.GameResult
		if err := rows.Scan(&r.GameID, &r.UserID, &r.Rank, &r.WPMRaw, &r.WPMCorrect, &r.Accuracy, &r.FinishedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning history row for %q: %w", userID, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating history for %q: %w", userID, err)
	}
	return results, total, nil
}

// AllByUser returns every finished game for userID, oldest first, for
// charting a WPM/accuracy trend line (spec §8 "profile graph", distilled
// from original_source/api/profile.py's graph endpoint).
func (s *GameResultStore) AllByUser(ctx context.Context, userID string) ([]model.GameResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT game_id, user_id, rank, wpm_raw, wpm_correct, accuracy, finished_at
		FROM game_results
		WHERE user_id = $1
		ORDER BY finished_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying all results for %q: %w", userID, err)
	}
	defer rows.Close()

	var results []model.GameResult
	for rows.Next() {
		var r model.GameResult
		if err := rows.Scan(&r.GameID, &r.UserID, &r.Rank, &r.WPMRaw, &r.WPMCorrect, &r.Accuracy, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning result row for %q: %w", userID, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ByGame returns every result row for a game ordered by rank ascending
// (spec §8 S4).
func (s *GameResultStore) ByGame(ctx context.Context, gameID int64) ([]model.GameResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT game_id, user_id, rank, wpm_raw, wpm_correct, accuracy, finished_at
		FROM game_results
		WHERE game_id = $1
		ORDER BY rank ASC`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying results for game %d: %w", gameID, err)
	}
	defer rows.Close()

	var results []model.GameResult
	for rows.Next() {
		var r model.GameResult
		if err := rows.Scan(&r.GameID, &r.UserID, &r.Rank, &r.WPMRaw, &r.WPMCorrect, &r.Accuracy, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning result row for game %d: %w", gameID, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
