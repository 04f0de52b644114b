package consumer

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AlexFangSW/typephoon/internal/broker"
	"github.com/AlexFangSW/typephoon/internal/session"
)

// GameStart consumes this instance's "game.start.<server_name>" queue: the
// fanned-out "playable now" tick from the game-start wait queue. The game's
// cleanup timer is already scheduled at game-creation time
// (QueueInService.createGameLocked); this consumer only has to tell local
// connections to go (spec §4.5, grounded on
// original_source/consumers/game_start.py).
type GameStart struct {
	r       *runner
	manager *session.Manager
}

// NewGameStart builds a GameStart consumer bound to serverName's queue.
func NewGameStart(b *broker.Broker, manager *session.Manager, serverName string, logger *slog.Logger) *GameStart {
	queue := broker.InstanceQueueName("game.start", serverName)
	return &GameStart{r: newRunner(b, queue, logger), manager: manager}
}

// Run blocks consuming until ctx is canceled.
func (c *GameStart) Run(ctx context.Context) error {
	return c.r.run(ctx, c.handle)
}

func (c *GameStart) handle(_ context.Context, d amqp.Delivery) error {
	msg, err := unmarshal[broker.GameStartMsg](d.Body)
	if err != nil {
		c.r.logger.Warn("dropping malformed game start message", "error", err)
		return nil
	}

	c.manager.Broadcast(msg.GameID, session.Frame{Event: session.EventStart, GameID: msg.GameID})
	return nil
}
