package consumer

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AlexFangSW/typephoon/internal/broker"
	"github.com/AlexFangSW/typephoon/internal/cache"
	"github.com/AlexFangSW/typephoon/internal/session"
	"github.com/AlexFangSW/typephoon/internal/store"
)

// GameCleanup consumes the shared "game.cleanup" work queue: one delivery
// per expired game-cleanup wait-queue timer. It marks the game FINISHED,
// drops both caches, and tears down every local connection still attached
// to it. Safe to run twice: the DB update and both cache deletes are
// idempotent (spec §4.5, grounded on
// original_source/consumers/game_cleaner.py).
type GameCleanup struct {
	r          *runner
	games      *store.GameStore
	gameCache  *cache.GameCache
	lobbyCache *cache.LobbyCache
	manager    *session.Manager
}

// NewGameCleanup builds a GameCleanup consumer.
func NewGameCleanup(b *broker.Broker, games *store.GameStore, gameCache *cache.GameCache, lobbyCache *cache.LobbyCache, manager *session.Manager, logger *slog.Logger) *GameCleanup {
	return &GameCleanup{
		r:          newRunner(b, "game.cleanup", logger),
		games:      games,
		gameCache:  gameCache,
		lobbyCache: lobbyCache,
		manager:    manager,
	}
}

// Run blocks consuming until ctx is canceled.
func (c *GameCleanup) Run(ctx context.Context) error {
	return c.r.run(ctx, c.handle)
}

func (c *GameCleanup) handle(ctx context.Context, d amqp.Delivery) error {
	msg, err := unmarshal[broker.GameCleanupMsg](d.Body)
	if err != nil {
		c.r.logger.Warn("dropping malformed game cleanup message", "error", err)
		return nil
	}

	if err := c.games.SetFinished(ctx, msg.GameID); err != nil {
		return err
	}
	if err := c.gameCache.Clear(ctx, msg.GameID); err != nil {
		return err
	}
	if err := c.lobbyCache.Clear(ctx, msg.GameID); err != nil {
		return err
	}
	c.manager.RemoveGame(msg.GameID)
	return nil
}
