package consumer

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AlexFangSW/typephoon/internal/broker"
	"github.com/AlexFangSW/typephoon/internal/session"
)

// Keystroke consumes this instance's "game.keystroke.<server_name>" queue:
// every player's progress tick, fanned out from every instance including
// this one. The `source` header lets a consumer identify its own
// publishes, but this design does not skip them, so a player sees their
// own keystroke reflected back through the same broadcast path as everyone
// else's (spec §4.5, §9 "Ambiguous source behavior", grounded on
// original_source/consumers/keystroke.py).
type Keystroke struct {
	r       *runner
	manager *session.Manager
}

// NewKeystroke builds a Keystroke consumer bound to serverName's queue.
func NewKeystroke(b *broker.Broker, manager *session.Manager, serverName string, logger *slog.Logger) *Keystroke {
	queue := broker.InstanceQueueName("game.keystroke", serverName)
	return &Keystroke{r: newRunner(b, queue, logger), manager: manager}
}

// Run blocks consuming until ctx is canceled.
func (c *Keystroke) Run(ctx context.Context) error {
	return c.r.run(ctx, c.handle)
}

func (c *Keystroke) handle(_ context.Context, d amqp.Delivery) error {
	msg, err := unmarshal[broker.KeystrokeMsg](d.Body)
	if err != nil {
		c.r.logger.Warn("dropping malformed keystroke message", "error", err)
		return nil
	}

	c.manager.Broadcast(msg.GameID, session.Frame{
		Event:     session.EventKeyStroke,
		UserID:    msg.UserID,
		WordIndex: msg.WordIndex,
		CharIndex: msg.CharIndex,
	})
	return nil
}
