package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AlexFangSW/typephoon/internal/apperr"
)

// alive always succeeds once the process is serving requests (spec §6 "GET
// /healthcheck/alive").
func (h *Handlers) alive(c *gin.Context) {
	ok(c, http.StatusOK, nil)
}

// ready probes every dependency with a short deadline; any failure means
// the instance shouldn't receive traffic yet (spec §6 "GET
// /healthcheck/ready").
func (h *Handlers) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 100*time.Millisecond)
	defer cancel()

	if err := h.db.Pool().Ping(ctx); err != nil {
		writeError(c, apperr.Wrap(apperr.CodeUnknown, "database not ready", err))
		return
	}
	if err := h.redis.Ping(ctx, 100*time.Millisecond); err != nil {
		writeError(c, apperr.Wrap(apperr.CodeUnknown, "cache not ready", err))
		return
	}
	if !h.broker.Ready() {
		writeError(c, apperr.New(apperr.CodeUnknown, "broker not ready"))
		return
	}

	ok(c, http.StatusOK, nil)
}
