package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AlexFangSW/typephoon/internal/apperr"
)

func (b *Broker) publish(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	confirmation, err := b.channel.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, true, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Headers:     headers,
	})
	if err != nil {
		return fmt.Errorf("publishing to %q: %w", exchange, err)
	}
	if confirmation == nil {
		return apperr.New(apperr.CodePublishNotAcknowledged, "publisher confirms disabled")
	}
	ok, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("waiting for publish confirm on %q: %w", exchange, err)
	}
	if !ok {
		return apperr.New(apperr.CodePublishNotAcknowledged, fmt.Sprintf("publish to %q not acknowledged", exchange))
	}
	return nil
}

// PublishLobbyCountdownWait schedules a LobbyCountdown delayed message with
// TTL lobbyCountdown (spec §4.3 step 3a).
func (b *Broker) PublishLobbyCountdownWait(ctx context.Context, gameID int64, lobbyCountdown time.Duration) error {
	queue, err := b.DeclareWaitQueue(QueueLobbyCountdownBase, lobbyCountdown, ExchangeLobbyCountdown, RoutingKeyLobbyCountdown)
	if err != nil {
		return err
	}
	body, err := json.Marshal(LobbyCountdownMsg{GameID: gameID})
	if err != nil {
		return fmt.Errorf("marshaling lobby countdown message: %w", err)
	}
	return b.publish(ctx, "", queue, body, nil)
}

// PublishGameCleanupWait schedules a GameCleanup delayed message with TTL
// cleanupCountdown (spec §4.3 step 3b).
func (b *Broker) PublishGameCleanupWait(ctx context.Context, gameID int64, cleanupCountdown time.Duration) error {
	queue, err := b.DeclareWaitQueue(QueueGameCleanupBase, cleanupCountdown, ExchangeGameCleanup, RoutingKeyGameCleanup)
	if err != nil {
		return err
	}
	body, err := json.Marshal(GameCleanupMsg{GameID: gameID})
	if err != nil {
		return fmt.Errorf("marshaling game cleanup message: %w", err)
	}
	return b.publish(ctx, "", queue, body, nil)
}

// PublishGameStartWait schedules a GameStart delayed message with TTL
// startCountdown (spec §4.1 step "b"). Its dead-letter target is the
// game.start fan-out exchange itself, so the single expiry fans out to
// every instance's instance-scoped game.start queue (spec §4.5, §6).
func (b *Broker) PublishGameStartWait(ctx context.Context, gameID int64, startCountdown time.Duration) error {
	queue, err := b.DeclareWaitQueue(QueueGameStartBase, startCountdown, ExchangeGameStart, "")
	if err != nil {
		return err
	}
	body, err := json.Marshal(GameStartMsg{GameID: gameID})
	if err != nil {
		return fmt.Errorf("marshaling game start message: %w", err)
	}
	return b.publish(ctx, "", queue, body, nil)
}

// PublishLobbyNotify fans a LobbyNotify message out to every instance
// (spec §4.3 step 6, §4.1 step "c").
func (b *Broker) PublishLobbyNotify(ctx context.Context, msg LobbyNotifyMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling lobby notify message: %w", err)
	}
	return b.publish(ctx, ExchangeLobbyNotify, "", body, nil)
}

// PublishKeystroke fans a Keystroke message out to every instance, tagging
// it with this instance's name (spec §4.5, §6).
func (b *Broker) PublishKeystroke(ctx context.Context, msg KeystrokeMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling keystroke message: %w", err)
	}
	return b.publish(ctx, ExchangeKeystroke, "", body, amqp.Table{HeaderSource: b.serverName})
}
