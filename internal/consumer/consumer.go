// Package consumer runs one goroutine per AMQP queue, decoding each
// delivery and dispatching it into the service/session layers (spec §4.4,
// §4.5, §9 "Consumers"). Each consumer acks on success, acks and drops on
// a malformed payload, and nacks (for requeue) on a processing error,
// grounded on original_source/consumers/*.py's try/except/ack shape.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AlexFangSW/typephoon/internal/broker"
)

// runner is the common consume loop every consumer in this package holds:
// open a channel, declare/bind nothing further (topology is already
// declared by broker.Connect), consume the named queue, and dispatch each
// delivery to handle until ctx is canceled.
type runner struct {
	b       *broker.Broker
	queue   string
	logger  *slog.Logger
	channel *amqp.Channel
}

func newRunner(b *broker.Broker, queue string, logger *slog.Logger) *runner {
	return &runner{b: b, queue: queue, logger: logger}
}

// run opens a dedicated consumer channel and blocks dispatching deliveries
// to handle until ctx is canceled or the channel closes.
func (r *runner) run(ctx context.Context, handle func(context.Context, amqp.Delivery) error) error {
	ch, err := r.b.NewConsumerChannel()
	if err != nil {
		return err
	}
	r.channel = ch
	defer ch.Close()

	deliveries, err := ch.Consume(r.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			r.dispatch(ctx, d, handle)
		}
	}
}

func (r *runner) dispatch(ctx context.Context, d amqp.Delivery, handle func(context.Context, amqp.Delivery) error) {
	if err := handle(ctx, d); err != nil {
		r.logger.Error("consumer processing failed", "queue", r.queue, "error", err)
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

func unmarshal[T any](body []byte) (T, error) {
	var v T
	err := json.Unmarshal(body, &v)
	return v, err
}
