package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AlexFangSW/typephoon/internal/broker"
	"github.com/AlexFangSW/typephoon/internal/model"
	"github.com/AlexFangSW/typephoon/internal/service"
	"github.com/AlexFangSW/typephoon/internal/store"
)

// LobbyCountdown consumes the shared "lobby.countdown" work queue: one
// delivery per expired lobby-countdown wait-queue timer. It promotes the
// game to IN_GAME unless it was already promoted or cancelled (spec §4.1
// step "b", grounded on original_source/consumers/lobby_countdown.py).
type LobbyCountdown struct {
	r       *runner
	games   *store.GameStore
	queueIn *service.QueueInService
}

// NewLobbyCountdown builds a LobbyCountdown consumer.
func NewLobbyCountdown(b *broker.Broker, games *store.GameStore, queueIn *service.QueueInService, logger *slog.Logger) *LobbyCountdown {
	return &LobbyCountdown{
		r:       newRunner(b, "lobby.countdown", logger),
		games:   games,
		queueIn: queueIn,
	}
}

// Run blocks consuming until ctx is canceled.
func (c *LobbyCountdown) Run(ctx context.Context) error {
	return c.r.run(ctx, c.handle)
}

func (c *LobbyCountdown) handle(ctx context.Context, d amqp.Delivery) error {
	msg, err := unmarshal[broker.LobbyCountdownMsg](d.Body)
	if err != nil {
		c.r.logger.Warn("dropping malformed lobby countdown message", "error", err)
		return nil
	}

	game, err := c.games.GetByID(ctx, msg.GameID)
	if err != nil {
		return err
	}
	if game == nil || game.Status != model.GameStatusLobby {
		// Already promoted by a full lobby, or the row is gone; the timer
		// firing is stale and there is nothing left to do.
		return nil
	}

	return c.queueIn.PromoteToInGame(ctx, msg.GameID)
}
