// Package broker wires the AMQP fan-out/wait-queue fabric that couples
// server instances (spec §2, §6, §9 "Delayed messages as timers").
package broker

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AlexFangSW/typephoon/internal/config"
)

// Exchange/queue names fixed by spec §6. Wait-queue base names are suffixed
// with an argument hash by WaitQueueName (spec §4.3 "Wait-queue naming").
const (
	ExchangeLobbyNotify    = "lobby.notify"
	ExchangeLobbyCountdown = "lobby.countdown"
	ExchangeGameStart      = "game.start"
	ExchangeKeystroke      = "game.keystroke"
	ExchangeGameCleanup    = "game.cleanup"

	RoutingKeyLobbyCountdown = "lobby.countdown"
	RoutingKeyGameCleanup    = "game.cleanup"

	QueueLobbyCountdownBase = "lobby.countdown.wait"
	QueueGameStartBase      = "game.start.wait"
	QueueGameCleanupBase    = "game.cleanup.wait"
)

// Broker owns the AMQP connection and the one channel used for topology
// declaration and publishing. Consumers open their own channels (spec §6:
// "one active queue per consumer").
type Broker struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	serverName  string
	prefetch    int
}

// Connect dials the broker and declares the full exchange/queue topology.
func Connect(ctx context.Context, cfg config.AMQPConfig, serverName string) (*Broker, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("dialing amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening amqp channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling publisher confirms: %w", err)
	}

	b := &Broker{conn: conn, channel: ch, serverName: serverName, prefetch: cfg.PrefetchCount}
	if err := b.declareTopology(cfg); err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

// Close closes the channel and connection.
func (b *Broker) Close() error {
	b.channel.Close()
	return b.conn.Close()
}

// Ready probes the connection with the short deadline spec §5 prescribes
// for readiness checks (100ms): a passive declare of a known exchange must
// round-trip within the deadline.
func (b *Broker) Ready() bool {
	if b.conn == nil || b.conn.IsClosed() {
		return false
	}

	done := make(chan error, 1)
	go func() {
		done <- b.channel.ExchangeDeclarePassive(ExchangeLobbyNotify, amqp.ExchangeFanout, true, false, false, false, nil)
	}()

	select {
	case err := <-done:
		return err == nil
	case <-time.After(100 * time.Millisecond):
		return false
	}
}

// Channel returns the broker's shared channel for topology/publish use.
func (b *Broker) Channel() *amqp.Channel {
	return b.channel
}

// NewConsumerChannel opens a fresh channel for one consumer, with the
// configured prefetch applied (spec §6: amqp.prefetch_count).
func (b *Broker) NewConsumerChannel() (*amqp.Channel, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("opening consumer channel: %w", err)
	}
	if err := ch.Qos(b.prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("setting qos: %w", err)
	}
	return ch, nil
}

// InstanceQueueName suffixes a base queue name with the server's unique
// identity (spec §6: "Instance-scoped active queues ... are suffixed with
// <server_name>").
func InstanceQueueName(base, serverName string) string {
	return fmt.Sprintf("%s.%s", base, serverName)
}

// WaitQueueName suffixes base with an 8-char hex prefix of the MD5 of its
// TTL+DLX arguments, so a configuration change declares a new queue rather
// than colliding with an immutable prior declaration (spec §4.3 "Wait-queue
// naming", §9).
func WaitQueueName(base string, ttl time.Duration, dlx, dlk string) string {
	h := md5.Sum([]byte(fmt.Sprintf("%s|%s|%s", ttl, dlx, dlk)))
	return fmt.Sprintf("%s.%s", base, hex.EncodeToString(h[:])[:8])
}

func (b *Broker) declareTopology(cfg config.AMQPConfig) error {
	ch := b.channel

	fanouts := []string{ExchangeLobbyNotify, ExchangeGameStart, ExchangeKeystroke}
	for _, name := range fanouts {
		if err := ch.ExchangeDeclare(name, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declaring fanout exchange %q: %w", name, err)
		}
	}

	directs := map[string]struct{}{ExchangeLobbyCountdown: {}, ExchangeGameCleanup: {}}
	for name := range directs {
		if err := ch.ExchangeDeclare(name, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declaring direct exchange %q: %w", name, err)
		}
	}

	// Instance-scoped active queues bound to the fan-out exchanges.
	active := map[string]string{
		InstanceQueueName("lobby.notify", b.serverName):    ExchangeLobbyNotify,
		InstanceQueueName("game.start", b.serverName):      ExchangeGameStart,
		InstanceQueueName("game.keystroke", b.serverName):  ExchangeKeystroke,
	}
	for queue, exchange := range active {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declaring queue %q: %w", queue, err)
		}
		if err := ch.QueueBind(queue, "", exchange, false, nil); err != nil {
			return fmt.Errorf("binding queue %q to %q: %w", queue, exchange, err)
		}
	}

	// Shared work queues bound to the direct exchanges (dead-letter targets).
	if _, err := ch.QueueDeclare("lobby.countdown", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring lobby.countdown queue: %w", err)
	}
	if err := ch.QueueBind("lobby.countdown", RoutingKeyLobbyCountdown, ExchangeLobbyCountdown, false, nil); err != nil {
		return fmt.Errorf("binding lobby.countdown queue: %w", err)
	}
	if _, err := ch.QueueDeclare("game.cleanup", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring game.cleanup queue: %w", err)
	}
	if err := ch.QueueBind("game.cleanup", RoutingKeyGameCleanup, ExchangeGameCleanup, false, nil); err != nil {
		return fmt.Errorf("binding game.cleanup queue: %w", err)
	}

	return nil
}

// DeclareWaitQueue declares (or re-declares, if args match) a TTL+DLX
// "wait queue" used as a delayed timer (spec §4.1, §9). Safe to call
// repeatedly: the name is derived from the arguments, so a config change
// produces a brand-new queue instead of an AMQP precondition-failed error.
func (b *Broker) DeclareWaitQueue(base string, ttl time.Duration, dlx, dlk string) (string, error) {
	name := WaitQueueName(base, ttl, dlx, dlk)
	args := amqp.Table{
		"x-message-ttl":             int64(ttl / time.Millisecond),
		"x-dead-letter-exchange":    dlx,
		"x-dead-letter-routing-key": dlk,
	}
	if _, err := b.channel.QueueDeclare(name, true, false, false, false, args); err != nil {
		return "", fmt.Errorf("declaring wait queue %q: %w", name, err)
	}
	return name, nil
}
