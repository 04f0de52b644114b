package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AlexFangSW/typephoon/internal/model"
)

// UserStore persists registered users (spec §3). Guests never get a row
// here: they live only as a LobbyUserInfo and a one-shot guest token.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore builds a UserStore over the shared pool.
func NewUserStore(s *Store) *UserStore {
	return &UserStore{pool: s.pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.RegisteredAt, &u.RefreshToken); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID fetches a user by namespaced id. Returns nil, nil if absent.
func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, name, registered_at, refresh_token FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}
	return u, nil
}

// Upsert creates the user row on first login, or updates the display name
// on subsequent logins.
func (s *UserStore) Upsert(ctx context.Context, id, name string) (*model.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, registered_at, refresh_token`,
		id, name,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("upserting user %q: %w", id, err)
	}
	return u, nil
}

// SetRefreshToken stores the refresh token as issued (not hashed) on login.
func (s *UserStore) SetRefreshToken(ctx context.Context, id string, refreshToken *string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET refresh_token = $2 WHERE id = $1`, id, refreshToken)
	if err != nil {
		return fmt.Errorf("setting refresh token for %q: %w", id, err)
	}
	return nil
}

// ClearRefreshToken clears the refresh token on logout.
func (s *UserStore) ClearRefreshToken(ctx context.Context, id string) error {
	return s.SetRefreshToken(ctx, id, nil)
}
