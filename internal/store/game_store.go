package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AlexFangSW/typephoon/internal/model"
)

// GameStore is the source-of-truth repository for games rows (spec §3).
// Every mutation that advances the lifecycle runs inside a transaction
// holding a row lock, so two instances racing on the same game serialize on
// the database rather than in memory (spec §5).
type GameStore struct {
	pool *pgxpool.Pool
}

// NewGameStore builds a GameStore over the shared pool.
func NewGameStore(s *Store) *GameStore {
	return &GameStore{pool: s.pool}
}

const gameColumns = `id, created_at, start_at, end_at, status, invite_token, game_type, player_count, finish_count`

func scanGame(row pgx.Row) (*model.Game, error) {
	var g model.Game
	if err := row.Scan(&g.ID, &g.CreatedAt, &g.StartAt, &g.EndAt, &g.Status, &g.InviteToken, &g.GameType, &g.PlayerCount, &g.FinishCount); err != nil {
		return nil, err
	}
	return &g, nil
}

// Create inserts a new LOBBY game of the given type.
func (s *GameStore) Create(ctx context.Context, gameType model.GameType) (*model.Game, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO games (status, game_type, player_count, finish_count)
		VALUES ($1, $2, 0, 0)
		RETURNING %s`, gameColumns),
		model.GameStatusLobby, gameType,
	)
	g, err := scanGame(row)
	if err != nil {
		return nil, fmt.Errorf("creating game: %w", err)
	}
	return g, nil
}

// CreateTx is Create run inside an already-open tx, for callers that need
// the insert to commit atomically with subsequent join bookkeeping (spec
// §4.3 step 3 "else" branch).
func (s *GameStore) CreateTx(ctx context.Context, tx pgx.Tx, gameType model.GameType) (*model.Game, error) {
	row := tx.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO games (status, game_type, player_count, finish_count)
		VALUES ($1, $2, 0, 0)
		RETURNING %s`, gameColumns),
		model.GameStatusLobby, gameType,
	)
	g, err := scanGame(row)
	if err != nil {
		return nil, fmt.Errorf("creating game: %w", err)
	}
	return g, nil
}

// GetByID fetches a game by id with no lock. Returns nil, nil if absent.
func (s *GameStore) GetByID(ctx context.Context, id int64) (*model.Game, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM games WHERE id = $1`, gameColumns), id)
	g, err := scanGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting game %d: %w", id, err)
	}
	return g, nil
}

// GetOneAvailableForUpdate selects the first LOBBY game with spare capacity,
// locking its row for the duration of tx (spec §4.3 step 3: "else" branch).
func (s *GameStore) GetOneAvailableForUpdate(ctx context.Context, tx pgx.Tx, playerLimit int) (*model.Game, error) {
	row := tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM games
		WHERE status = $1 AND player_count < $2
		ORDER BY id
		LIMIT 1
		FOR UPDATE`, gameColumns),
		model.GameStatusLobby, playerLimit,
	)
	g, err := scanGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting available game: %w", err)
	}
	return g, nil
}

// IsAvailableForUpdate locks and returns the game at id for a RECONNECT
// join. newPlayer=false allows joining even when the game is at capacity,
// since the caller already confirmed cache membership (spec §4.3 step 3).
func (s *GameStore) IsAvailableForUpdate(ctx context.Context, tx pgx.Tx, id int64, playerLimit int, newPlayer bool) (*model.Game, error) {
	query := fmt.Sprintf(`SELECT %s FROM games WHERE id = $1 FOR UPDATE`, gameColumns)
	row := tx.QueryRow(ctx, query, id)
	g, err := scanGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("locking game %d: %w", id, err)
	}
	if newPlayer && g.PlayerCount >= playerLimit {
		return nil, nil
	}
	return g, nil
}

// IncreasePlayerCount increments player_count by one and returns the
// updated row, all inside tx so the caller's capacity check and the
// increment are linearized together (spec §4.3 step 4).
func (s *GameStore) IncreasePlayerCount(ctx context.Context, tx pgx.Tx, id int64) (*model.Game, error) {
	row := tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE games SET player_count = player_count + 1
		WHERE id = $1
		RETURNING %s`, gameColumns), id)
	g, err := scanGame(row)
	if err != nil {
		return nil, fmt.Errorf("increasing player count for game %d: %w", id, err)
	}
	return g, nil
}

// DecreasePlayerCount decrements player_count by one, floored at zero
// (spec §4.2 lobby leave path).
func (s *GameStore) DecreasePlayerCount(ctx context.Context, id int64) (*model.Game, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE games SET player_count = GREATEST(player_count - 1, 0)
		WHERE id = $1
		RETURNING %s`, gameColumns), id)
	g, err := scanGame(row)
	if err != nil {
		return nil, fmt.Errorf("decreasing player count for game %d: %w", id, err)
	}
	return g, nil
}

// StartGame sets status=IN_GAME and start_at=now() in one update, and is
// idempotent: if start_at is already set it is a no-op returning the
// current row (spec §4.1, both transition paths).
func (s *GameStore) StartGame(ctx context.Context, id int64) (*model.Game, error) {
	var g *model.Game
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM games WHERE id = $1 FOR UPDATE`, gameColumns), id)
		existing, err := scanGame(row)
		if err != nil {
			return err
		}
		if existing.StartAt != nil {
			g = existing
			return nil
		}
		row = tx.QueryRow(ctx, fmt.Sprintf(`
			UPDATE games SET status = $1, start_at = now()
			WHERE id = $2
			RETURNING %s`, gameColumns),
			model.GameStatusInGame, id,
		)
		g, err = scanGame(row)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("starting game %d: %w", id, err)
	}
	return g, nil
}

// SetFinished sets status=FINISHED and end_at=now(). Safe to call twice
// (spec §4.5, game-cleanup consumer).
func (s *GameStore) SetFinished(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE games SET status = $1, end_at = COALESCE(end_at, now())
		WHERE id = $2`,
		model.GameStatusFinished, id,
	)
	if err != nil {
		return fmt.Errorf("finishing game %d: %w", id, err)
	}
	return nil
}

// IncreaseFinishCount increments finish_count and returns the updated row;
// the new finish_count is the 1-based finish rank (spec §4.6).
func (s *GameStore) IncreaseFinishCount(ctx context.Context, tx pgx.Tx, id int64) (*model.Game, error) {
	row := tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE games SET finish_count = finish_count + 1
		WHERE id = $1
		RETURNING %s`, gameColumns), id)
	g, err := scanGame(row)
	if err != nil {
		return nil, fmt.Errorf("increasing finish count for game %d: %w", id, err)
	}
	return g, nil
}

// BeginTx starts a transaction for multi-statement row-locked operations.
func (s *GameStore) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

func (s *GameStore) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
