package store

import (
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/AlexFangSW/typephoon/internal/model"
)

func TestGameStoreLifecycle(t *testing.T) {
	s := newTestStore(t)
	games := NewGameStore(s)
	ctx := t.Context()

	g, err := games.Create(ctx, model.GameTypeMulti)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.Status != model.GameStatusLobby {
		t.Fatalf("expected LOBBY status, got %v", g.Status)
	}

	tx := mustTx(t, games)
	g, err = games.IncreasePlayerCount(ctx, tx, g.ID)
	if err != nil {
		t.Fatalf("increase player count: %v", err)
	}
	if g.PlayerCount != 1 {
		t.Fatalf("expected player_count=1, got %d", g.PlayerCount)
	}
	// Commit now: StartGame locks the same row and would wait on this tx.
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit player count: %v", err)
	}

	started, err := games.StartGame(ctx, g.ID)
	if err != nil {
		t.Fatalf("start game: %v", err)
	}
	if started.Status != model.GameStatusInGame || started.StartAt == nil {
		t.Fatalf("expected IN_GAME with start_at set, got %+v", started)
	}

	// StartGame is idempotent.
	again, err := games.StartGame(ctx, g.ID)
	if err != nil {
		t.Fatalf("start game again: %v", err)
	}
	if *again.StartAt != *started.StartAt {
		t.Fatalf("expected start_at unchanged on second start, got %v vs %v", again.StartAt, started.StartAt)
	}

	if err := games.SetFinished(ctx, g.ID); err != nil {
		t.Fatalf("set finished: %v", err)
	}
	fetched, err := games.GetByID(ctx, g.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if fetched.Status != model.GameStatusFinished || fetched.EndAt == nil {
		t.Fatalf("expected FINISHED with end_at set, got %+v", fetched)
	}
}

func TestGameStoreGetByIDMissing(t *testing.T) {
	s := newTestStore(t)
	games := NewGameStore(s)

	g, err := games.GetByID(t.Context(), 999999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if g != nil {
		t.Fatalf("expected nil for missing game, got %+v", g)
	}
}

func mustTx(t *testing.T, games *GameStore) pgx.Tx {
	t.Helper()
	tx, err := games.BeginTx(t.Context())
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	t.Cleanup(func() { _ = tx.Commit(t.Context()) })
	return tx
}
