package session

import (
	"context"
	"log/slog"
	"sync"
)

// RemoveCallback is invoked after a user's Connection is removed from a
// Group, outside the group's lock. It exists purely for observability
// hooks: SessionGroup membership is a local transport concern, distinct
// from LobbyCache membership, which only ever changes through the
// queue-in join path and the game-cleanup consumer's clear (a dropped
// connection, whether from a healthcheck failure or a normal close, never
// by itself mutates the lobby cache).
type RemoveCallback func(gameID int64, userID string)

// Group is the set of Connections for one game on this instance (spec §4.2
// SessionGroup). Adding a connection for a user_id already present replaces
// it, closing the previous one. Health events from member connections and
// group membership changes are reported onto the shared health channel so a
// single SessionManager goroutine can serialize "remove empty group" logic.
type Group struct {
	gameID int64
	logger *slog.Logger

	mu      sync.Mutex
	members map[string]*Connection

	health   chan HealthEvent
	onRemove RemoveCallback

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewGroup creates an empty Group for gameID. health is shared with every
// Connection added to this group and drained by the owning SessionManager.
func NewGroup(gameID int64, health chan HealthEvent, onRemove RemoveCallback, logger *slog.Logger) *Group {
	return &Group{
		gameID:   gameID,
		logger:   logger,
		members:  make(map[string]*Connection),
		health:   health,
		onRemove: onRemove,
		stopCh:   make(chan struct{}),
	}
}

// Health returns the channel a Connection for this group should report
// health events on, for callers that construct a Connection before handing
// it to Add.
func (g *Group) Health() chan<- HealthEvent {
	return g.health
}

// Add registers conn as userID's connection, replacing and closing any
// existing one (spec §4.2 "duplicate user_id replaces the prior
// connection").
func (g *Group) Add(ctx context.Context, conn *Connection, onReceive func(Frame)) {
	g.mu.Lock()
	if prev, ok := g.members[conn.UserID]; ok {
		prev.Stop()
	}
	g.members[conn.UserID] = conn
	g.mu.Unlock()

	go conn.Start(ctx, onReceive)
	g.notifyUpdate()
}

// Remove stops and drops userID's connection, if present, then invokes
// onRemove outside the lock.
func (g *Group) Remove(userID string) {
	g.mu.Lock()
	conn, ok := g.members[userID]
	if ok {
		delete(g.members, userID)
	}
	empty := len(g.members) == 0
	g.mu.Unlock()

	if !ok {
		return
	}
	conn.Stop()
	if g.onRemove != nil {
		g.onRemove(g.gameID, userID)
	}
	if empty {
		g.notifyUpdate()
	}
}

// Broadcast queues frame for delivery to every current member.
func (g *Group) Broadcast(frame Frame) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, conn := range g.members {
		conn.Put(frame)
	}
}

// Send queues frame for delivery to a single member, if connected.
func (g *Group) Send(userID string, frame Frame) bool {
	g.mu.Lock()
	conn, ok := g.members[userID]
	g.mu.Unlock()
	if !ok {
		return false
	}
	conn.Put(frame)
	return true
}

// Len reports the current member count.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// Has reports whether userID currently has a connection in this group.
func (g *Group) Has(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.members[userID]
	return ok
}

// Stop closes every member connection. Idempotent.
func (g *Group) Stop() {
	g.stopOnce.Do(func() {
		close(g.stopCh)
		g.mu.Lock()
		members := make([]*Connection, 0, len(g.members))
		for _, c := range g.members {
			members = append(members, c)
		}
		g.members = make(map[string]*Connection)
		g.mu.Unlock()
		for _, c := range members {
			c.Stop()
		}
	})
}

func (g *Group) notifyUpdate() {
	select {
	case g.health <- HealthEvent{GameID: g.gameID, Kind: EventClosed}:
	default:
	}
}
