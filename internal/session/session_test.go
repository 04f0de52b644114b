package session_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gwebsocket "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexFangSW/typephoon/internal/session"
)

func testServer(t *testing.T, mgr *session.Manager, gameID int64, userID string) (*httptest.Server, chan struct{}) {
	t.Helper()
	upgrader := gwebsocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	registered := make(chan struct{}, 1)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		group := mgr.GetOrCreate(gameID)
		conn := session.NewConnection(raw, gameID, userID, 15*time.Second, group.Health(), slog.Default())
		group.Add(r.Context(), conn, func(session.Frame) {})
		registered <- struct{}{}
	})
	return httptest.NewServer(h), registered
}

func TestManagerRegistersAndPrunesGroup(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_ = logger

	var removed []string
	var mu sync.Mutex
	mgr := session.NewManager(func(gameID int64, userID string) {
		mu.Lock()
		removed = append(removed, userID)
		mu.Unlock()
	}, slog.Default())

	go mgr.Run()
	defer mgr.Cleanup()

	s, registered := testServer(t, mgr, 1, "user-a")
	defer s.Close()

	rawWS, _, err := gwebsocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http"), nil)
	require.NoError(t, err)
	defer rawWS.Close()

	<-registered
	time.Sleep(10 * time.Millisecond)

	group, ok := mgr.Get(1)
	require.True(t, ok)
	assert.Equal(t, 1, group.Len())
	assert.True(t, group.Has("user-a"))

	rawWS.WriteControl(gwebsocket.CloseMessage, nil, time.Now().Add(time.Second))
	rawWS.Close()

	require.Eventually(t, func() bool {
		_, ok := mgr.Get(1)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Contains(t, removed, "user-a")
	mu.Unlock()
}

func TestGroupAddReplacesDuplicateUser(t *testing.T) {
	health := make(chan session.HealthEvent, 8)
	group := session.NewGroup(1, health, nil, slog.Default())

	upgrader := gwebsocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conn := session.NewConnection(raw, 1, "dup", 15*time.Second, health, slog.Default())
		group.Add(r.Context(), conn, func(session.Frame) {})
	})
	s := httptest.NewServer(h)
	defer s.Close()

	dial := func() *gwebsocket.Conn {
		c, _, err := gwebsocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http"), nil)
		require.NoError(t, err)
		return c
	}

	first := dial()
	defer first.Close()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, group.Len())

	second := dial()
	defer second.Close()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, group.Len())
}

func TestConnectionPutAfterStopDropsSilently(t *testing.T) {
	health := make(chan session.HealthEvent, 1)
	upgrader := gwebsocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	var conn *session.Connection
	ready := make(chan struct{})
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conn = session.NewConnection(raw, 1, "user-a", 15*time.Second, health, slog.Default())
		close(ready)
		conn.Start(context.Background(), func(session.Frame) {})
	})
	s := httptest.NewServer(h)
	defer s.Close()

	rawWS, _, err := gwebsocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http"), nil)
	require.NoError(t, err)
	defer rawWS.Close()

	<-ready
	conn.Stop()
	time.Sleep(10 * time.Millisecond)

	assert.NotPanics(t, func() {
		conn.Put(session.Frame{Event: session.EventPing})
	})
}
