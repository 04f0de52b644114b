package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AlexFangSW/typephoon/internal/service"
	"github.com/AlexFangSW/typephoon/internal/session"
)

// lobbyPlayers answers GET /lobby/players?game_id= with the caller plus
// every other current lobby member (spec §4.7, §8).
func (h *Handlers) lobbyPlayers(c *gin.Context) {
	caller, okCaller := h.requireCaller(c)
	if !okCaller {
		return
	}
	gameID, okID := gameIDParam(c)
	if !okID {
		return
	}

	players, err := h.lobby.Players(c.Request.Context(), gameID, caller.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"me":     players.Me,
		"others": players.Others,
	})
}

// lobbyCountdown answers GET /lobby/countdown?game_id= with the seconds
// left until the lobby either fills or its wait-queue timer fires (spec
// §4.1, §8).
func (h *Handlers) lobbyCountdown(c *gin.Context) {
	gameID, okID := gameIDParam(c)
	if !okID {
		return
	}

	left, err := h.lobby.Countdown(c.Request.Context(), gameID)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"seconds_left": left.Seconds()})
}

// lobbyQueueInWS upgrades GET /lobby/queue-in/ws and drives the matchmaking
// flow (spec §4.3). Identity must be resolved, and found invalid, before any
// websocket upgrade or broker/DB mutation happens: a bad TP_AT cookie closes
// the handshake outright rather than opening a socket just to tear it down.
func (h *Handlers) lobbyQueueInWS(c *gin.Context) {
	accessToken := h.accessTokenCookie(c)
	identity, err := h.queueIn.ResolveIdentity(c.Request.Context(), accessToken)
	if err != nil {
		writeError(c, err)
		return
	}

	queueInType := service.QueueInNew
	var prevGameID *int64
	if c.Query("connection_type") == "reconnect" {
		queueInType = service.QueueInReconnect
		if id, err := strconv.ParseInt(c.Query("prev_game_id"), 10, 64); err == nil {
			prevGameID = &id
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("lobby websocket upgrade failed", "error", err)
		return
	}

	gameID, full, err := h.queueIn.Enqueue(c.Request.Context(), identity.User, queueInType, prevGameID)
	if err != nil {
		h.logger.Error("lobby enqueue failed", "error", err)
		conn.Close()
		return
	}

	group := h.manager.GetOrCreate(gameID)
	sessConn := session.NewConnection(conn, gameID, identity.User.ID, h.cfg.BG.PingInterval, group.Health(), h.logger)
	// The connection outlives this request: net/http cancels
	// c.Request.Context() the moment this handler returns, so the read/write
	// loops run under a background context instead. CloseWait blocks the
	// handler so the request's goroutine isn't leaked once the socket closes.
	connCtx := context.Background()
	group.Add(connCtx, sessConn, func(frame session.Frame) {
		h.handleLobbyFrame(connCtx, gameID, identity.User.ID, frame)
	})

	sessConn.Put(session.Frame{Event: session.EventInit, GameID: gameID})
	if identity.GuestTokenKey != "" {
		sessConn.Put(session.Frame{Event: session.EventGetToken, GuestTokenKey: identity.GuestTokenKey})
	}

	if err := h.queueIn.NotifyUserJoined(connCtx, gameID); err != nil {
		h.logger.Error("publishing lobby user joined", "error", err)
	}

	if full {
		if err := h.queueIn.PromoteToInGame(connCtx, gameID); err != nil {
			h.logger.Error("promoting lobby to in-game", "error", err)
		}
	}

	sessConn.CloseWait()
}

// handleLobbyFrame processes inbound lobby frames. PONG is handled
// implicitly by the websocket pong handler; anything else the client sends
// over this endpoint is unexpected.
func (h *Handlers) handleLobbyFrame(_ context.Context, _ int64, _ string, frame session.Frame) {
	if frame.Event != session.EventPong {
		h.logger.Warn("unexpected lobby inbound frame", "event", frame.Event)
	}
}
