package consumer

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AlexFangSW/typephoon/internal/broker"
	"github.com/AlexFangSW/typephoon/internal/session"
)

// LobbyNotify consumes this instance's "lobby.notify.<server_name>" queue
// and turns each fanned-out LobbyNotifyMsg into a frame delivered to this
// instance's local lobby session group (spec §4.3 step 6, §4.5, grounded on
// original_source/consumers/lobby_notify.py).
type LobbyNotify struct {
	r       *runner
	manager *session.Manager
}

// NewLobbyNotify builds a LobbyNotify consumer bound to serverName's queue.
func NewLobbyNotify(b *broker.Broker, manager *session.Manager, serverName string, logger *slog.Logger) *LobbyNotify {
	queue := broker.InstanceQueueName("lobby.notify", serverName)
	return &LobbyNotify{r: newRunner(b, queue, logger), manager: manager}
}

// Run blocks consuming until ctx is canceled.
func (c *LobbyNotify) Run(ctx context.Context) error {
	return c.r.run(ctx, c.handle)
}

func (c *LobbyNotify) handle(_ context.Context, d amqp.Delivery) error {
	msg, err := unmarshal[broker.LobbyNotifyMsg](d.Body)
	if err != nil {
		c.r.logger.Warn("dropping malformed lobby notify message", "error", err)
		return nil
	}

	switch msg.NotifyType {
	case broker.LobbyNotifyUserJoined:
		c.manager.Broadcast(msg.GameID, session.Frame{Event: session.EventUserJoined, UserID: msg.UserID})
	case broker.LobbyNotifyUserLeft:
		c.manager.Broadcast(msg.GameID, session.Frame{Event: session.EventUserLeft, UserID: msg.UserID})
	case broker.LobbyNotifyGetToken:
		// Targeted, not broadcast: only the guest who minted this token
		// needs to learn its key.
		if g, ok := c.manager.Get(msg.GameID); ok {
			g.Send(msg.UserID, session.Frame{Event: session.EventGetToken, GuestTokenKey: msg.GuestTokenKey})
		}
	case broker.LobbyNotifyGameStart:
		// GAME_START is the lobby group's final message: deliver it, then
		// tear the group down so the client's reconnect to /game/ws starts
		// from a clean slate (spec §4.4 "lobby-notify").
		c.manager.Broadcast(msg.GameID, session.Frame{Event: session.EventGameStart, GameID: msg.GameID})
		c.manager.RemoveGame(msg.GameID)
	default:
		c.r.logger.Warn("unknown lobby notify type", "notify_type", msg.NotifyType)
	}
	return nil
}
