package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AlexFangSW/typephoon/internal/apperr"
	"github.com/AlexFangSW/typephoon/internal/broker"
	"github.com/AlexFangSW/typephoon/internal/service"
	"github.com/AlexFangSW/typephoon/internal/session"
)

func gameIDParam(c *gin.Context) (int64, bool) {
	gameID, err := strconv.ParseInt(c.Query("game_id"), 10, 64)
	if err != nil {
		badRequest(c, apperr.CodeValidation, "game_id must be an integer")
		return 0, false
	}
	return gameID, true
}

// gameCountdown answers GET /game/countdown?game_id= (spec §8 "GET
// /game/countdown").
func (h *Handlers) gameCountdown(c *gin.Context) {
	gameID, okID := gameIDParam(c)
	if !okID {
		return
	}

	left, err := h.game.Countdown(c.Request.Context(), gameID)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"seconds_left": left.Seconds()})
}

// gameWords answers GET /game/words?game_id= with the race's word list
// (spec §8 "GET /game/words").
func (h *Handlers) gameWords(c *gin.Context) {
	gameID, okID := gameIDParam(c)
	if !okID {
		return
	}

	words, err := h.game.Words(c.Request.Context(), gameID)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"words": words})
}

type postStatisticsRequest struct {
	GameID int64   `json:"game_id" binding:"required"`
	WPM    int     `json:"wpm"`
	WPMRaw int     `json:"wpm_raw"`
	Acc    float64 `json:"acc"`
}

// postGameStatistics handles POST /game/statistics, the client's finish
// submission (spec §4.6).
func (h *Handlers) postGameStatistics(c *gin.Context) {
	caller, okCaller := h.requireCaller(c)
	if !okCaller {
		return
	}

	var req postStatisticsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, apperr.CodeValidation, "invalid request body")
		return
	}

	stats := service.Statistics{GameID: req.GameID, WPM: req.WPM, WPMRaw: req.WPMRaw, Accuracy: req.Acc}
	if err := h.game.WriteStatistics(c.Request.Context(), stats, caller.UserID, caller.Username, caller.UserType); err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

// getGameStatistics answers GET /game/statistics?game_id= with every
// participant's current result, sorted by rank (spec §8 S4).
func (h *Handlers) getGameStatistics(c *gin.Context) {
	gameID, okID := gameIDParam(c)
	if !okID {
		return
	}

	players, err := h.game.Ranking(c.Request.Context(), gameID)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]gin.H, 0, len(players))
	for _, p := range players {
		out = append(out, gin.H{
			"user_id":  p.ID,
			"name":     p.Name,
			"rank":     p.Rank,
			"wpm":      p.WPM,
			"wpm_raw":  p.WPMRaw,
			"acc":      p.Accuracy,
			"finished": p.IsFinished(),
		})
	}
	ok(c, http.StatusOK, gin.H{"players": out})
}

// gameWS upgrades GET /game/ws?game_id= and streams
// PING/START/KEY_STOKE frames for one race (spec §4.5). Identity resolves
// the same way the lobby streaming endpoint does, since a guest can reach
// this endpoint straight from a RECONNECT without ever minting a second
// token.
func (h *Handlers) gameWS(c *gin.Context) {
	gameID, okID := gameIDParam(c)
	if !okID {
		return
	}

	accessToken := h.accessTokenCookie(c)
	identity, err := h.queueIn.ResolveIdentity(c.Request.Context(), accessToken)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("game websocket upgrade failed", "error", err)
		return
	}

	group := h.manager.GetOrCreate(gameID)
	sessConn := session.NewConnection(conn, gameID, identity.User.ID, h.cfg.BG.PingInterval, group.Health(), h.logger)
	// The connection outlives this request: net/http cancels
	// c.Request.Context() the moment this handler returns, so the read/write
	// loops and every frame published from them run under a background
	// context instead. CloseWait blocks the handler so the request's
	// goroutine isn't leaked once the socket closes.
	connCtx := context.Background()
	group.Add(connCtx, sessConn, func(frame session.Frame) {
		h.handleGameFrame(connCtx, gameID, identity.User.ID, frame)
	})

	sessConn.Put(session.Frame{Event: session.EventInit, GameID: gameID})
	sessConn.CloseWait()
}

// handleGameFrame publishes inbound KEY_STOKE frames to every instance so
// each one's local SessionGroup can echo the keystroke (spec §4.5).
func (h *Handlers) handleGameFrame(ctx context.Context, gameID int64, userID string, frame session.Frame) {
	switch frame.Event {
	case session.EventKeyStroke:
		msg := broker.KeystrokeMsg{GameID: gameID, UserID: userID, WordIndex: frame.WordIndex, CharIndex: frame.CharIndex}
		if err := h.broker.PublishKeystroke(ctx, msg); err != nil {
			h.logger.Error("publishing keystroke", "error", err)
		}
	case session.EventPong:
	default:
		h.logger.Warn("unexpected game inbound frame", "event", frame.Event)
	}
}
