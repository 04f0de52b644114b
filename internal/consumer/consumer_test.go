package consumer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AlexFangSW/typephoon/internal/session"
)

// fakeAcknowledger records which of Ack/Nack/Reject was called, so dispatch
// can be tested without a live broker connection.
type fakeAcknowledger struct {
	acked  bool
	nacked bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error    { f.acked = true; return nil }
func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = true
	return nil
}
func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error { return nil }

func newTestDelivery(ack *fakeAcknowledger) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, Body: []byte(`{}`)}
}

func TestDispatchAcksOnSuccess(t *testing.T) {
	r := newRunner(nil, "test.queue", slog.Default())
	ack := &fakeAcknowledger{}

	r.dispatch(context.Background(), newTestDelivery(ack), func(context.Context, amqp.Delivery) error {
		return nil
	})

	if !ack.acked || ack.nacked {
		t.Errorf("expected ack only, got acked=%v nacked=%v", ack.acked, ack.nacked)
	}
}

func TestDispatchNacksOnProcessingError(t *testing.T) {
	r := newRunner(nil, "test.queue", slog.Default())
	ack := &fakeAcknowledger{}

	r.dispatch(context.Background(), newTestDelivery(ack), func(context.Context, amqp.Delivery) error {
		return errors.New("boom")
	})

	if ack.acked || !ack.nacked {
		t.Errorf("expected nack only, got acked=%v nacked=%v", ack.acked, ack.nacked)
	}
}

func TestKeystrokeBroadcastsEvenWhenSourceIsSelf(t *testing.T) {
	manager := session.NewManager(nil, slog.Default())
	c := &Keystroke{manager: manager}
	ack := &fakeAcknowledger{}
	d := newTestDelivery(ack)
	d.Headers = amqp.Table{"source": "instance-a"}
	d.Body = []byte(`{"game_id":1,"user_id":"u1","word_index":2,"char_index":3}`)

	group := manager.GetOrCreate(1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := session.NewConnection(raw, 1, "u2", time.Minute, group.Health(), slog.Default())
		group.Add(context.Background(), conn, func(session.Frame) {})
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for group.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := c.handle(context.Background(), d); err != nil {
		t.Fatalf("handle returned error: %v", err)
	}
	if group.Len() != 1 {
		t.Fatalf("expected one member, got %d", group.Len())
	}

	var frame session.Frame
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := client.ReadJSON(&frame); err != nil {
		t.Fatalf("reading broadcast frame: %v", err)
	}
	if frame.Event != session.EventKeyStroke || frame.UserID != "u1" || frame.WordIndex != 2 || frame.CharIndex != 3 {
		t.Fatalf("unexpected broadcast frame: %+v", frame)
	}
}
