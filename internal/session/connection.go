package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single websocket write (frame, ping, or close)
// may block (spec §9 healthcheck design).
const writeWait = 5 * time.Second

// EventKind is what a SessionConnection reports back to its owning
// SessionGroup/SessionManager through its health channel.
type EventKind string

const (
	EventHealthcheckFail EventKind = "HEALTHCHECK_FAIL"
	EventClosed          EventKind = "CLOSED"
)

// HealthEvent is one (game_id, user_id, kind) tuple consumed by the
// SessionManager's single supervision loop (spec §4.2, §9).
type HealthEvent struct {
	GameID int64
	UserID string
	Kind   EventKind
}

// Connection is one user's streaming socket for one game (spec §4.2
// SessionConnection). Outbound frames are queued on a buffered channel and
// drained by a single writer goroutine so concurrent Put calls never race on
// the underlying websocket. Stop is idempotent: once stopped, Put drops
// frames silently; frames already queued are still written before the close.
type Connection struct {
	GameID int64
	UserID string

	conn   *websocket.Conn
	logger *slog.Logger

	pingInterval time.Duration
	pongWait     time.Duration

	outbox   chan Frame
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	health chan<- HealthEvent

	lastPong   time.Time
	lastPongMu sync.Mutex
}

// NewConnection wraps conn for gameID/userID, reporting health events onto
// health (normally the owning SessionGroup's shared channel). pingInterval
// is how often Start writes a PING frame and checks the last pong deadline
// (config's bg.ping_interval, spec §6/§9); the pong deadline itself is twice
// that.
func NewConnection(conn *websocket.Conn, gameID int64, userID string, pingInterval time.Duration, health chan<- HealthEvent, logger *slog.Logger) *Connection {
	c := &Connection{
		GameID:       gameID,
		UserID:       userID,
		conn:         conn,
		logger:       logger,
		pingInterval: pingInterval,
		pongWait:     pingInterval * 2,
		outbox:       make(chan Frame, 64),
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
		health:       health,
		lastPong:     time.Now(),
	}
	conn.SetPongHandler(func(string) error {
		c.lastPongMu.Lock()
		c.lastPong = time.Now()
		c.lastPongMu.Unlock()
		return nil
	})
	return c
}

// Start launches the write loop and the read loop. It returns once both have
// exited; callers typically run it in its own goroutine.
func (c *Connection) Start(ctx context.Context, onReceive func(Frame)) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writeLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		c.readLoop(onReceive)
	}()
	wg.Wait()
	close(c.done)
}

func (c *Connection) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Stop()
			return
		case <-c.stopCh:
			// Flush frames queued before Stop, such as a group's final message.
		flush:
			for {
				select {
				case frame := <-c.outbox:
					if body, err := json.Marshal(frame); err == nil {
						c.conn.SetWriteDeadline(time.Now().Add(writeWait))
						if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
							break flush
						}
					}
				default:
					break flush
				}
			}
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case frame := <-c.outbox:
			body, err := json.Marshal(frame)
			if err != nil {
				c.logger.Error("marshal outbound frame", "error", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				c.reportHealthFail()
				c.Stop()
				return
			}
		case <-ticker.C:
			c.lastPongMu.Lock()
			stale := time.Since(c.lastPong) > c.pongWait
			c.lastPongMu.Unlock()
			if stale {
				c.reportHealthFail()
				c.Stop()
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.reportHealthFail()
				c.Stop()
				return
			}
		}
	}
}

func (c *Connection) readLoop(onReceive func(Frame)) {
	for {
		_, body, err := c.conn.ReadMessage()
		if err != nil {
			c.reportHealthFail()
			c.Stop()
			return
		}
		var frame Frame
		if err := json.Unmarshal(body, &frame); err != nil {
			c.logger.Warn("dropping malformed inbound frame", "error", err)
			continue
		}
		onReceive(frame)
	}
}

func (c *Connection) reportHealthFail() {
	select {
	case c.health <- HealthEvent{GameID: c.GameID, UserID: c.UserID, Kind: EventHealthcheckFail}:
	default:
	}
}

// Put enqueues a frame for delivery. Silently dropped once Stop has been
// called (spec §4.2: "messages are dropped silently after stop").
func (c *Connection) Put(frame Frame) {
	select {
	case <-c.stopCh:
		return
	default:
	}
	select {
	case c.outbox <- frame:
	case <-c.stopCh:
	}
}

// Ping sends an application-level PONG-eliciting frame ahead of the next
// ticker-driven websocket ping. Exposed for callers that want an immediate
// liveness probe (e.g. on RECONNECT).
func (c *Connection) Ping() {
	c.Put(Frame{Event: EventPing})
}

// Stop idempotently begins shutdown; safe to call from any goroutine any
// number of times.
func (c *Connection) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// CloseWait blocks until both loops have exited, then closes the socket. It
// does not stop the connection itself.
func (c *Connection) CloseWait() {
	<-c.done
	c.conn.Close()
}
