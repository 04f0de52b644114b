package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AlexFangSW/typephoon/internal/apperr"
)

// login issues the provider's consent-screen redirect (spec §6 "POST
// /auth/:provider/login", grounded on original_source/api/auth.py#login).
func (h *Handlers) login(c *gin.Context) {
	if _, err := h.providerFor(c.Param("provider")); err != nil {
		c.Redirect(http.StatusFound, h.cfg.ErrorRedirect)
		return
	}

	authURL, err := h.auth.Login(c.Request.Context())
	if err != nil {
		h.logger.Error("issuing oauth login", "error", err)
		c.Redirect(http.StatusFound, h.cfg.ErrorRedirect)
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// loginRedirect completes the OAuth round trip and sets the three auth
// cookies before redirecting back to the front end (spec §6 "GET
// /auth/:provider/login-redirect").
func (h *Handlers) loginRedirect(c *gin.Context) {
	if _, err := h.providerFor(c.Param("provider")); err != nil {
		c.Redirect(http.StatusFound, h.cfg.ErrorRedirect)
		return
	}

	state := c.Query("state")
	code := c.Query("code")
	pair, username, err := h.auth.LoginRedirect(c.Request.Context(), state, code)
	if err != nil {
		h.logger.Warn("oauth login redirect failed", "error", err)
		c.Redirect(http.StatusFound, h.cfg.ErrorRedirect)
		return
	}

	h.setAuthCookies(c, pair.AccessToken, pair.RefreshToken, username)
	c.Redirect(http.StatusFound, h.cfg.FrontEndEndpoint)
}

// logout clears the refresh token on file and every auth cookie (spec §6
// "POST /auth/logout").
func (h *Handlers) logout(c *gin.Context) {
	if accessToken := h.accessTokenCookie(c); accessToken != "" {
		if claims, err := h.validator.Validate(accessToken); err == nil {
			if err := h.auth.Logout(c.Request.Context(), claims.Subject); err != nil {
				h.logger.Warn("logout", "error", err)
			}
		}
	}
	h.clearAuthCookies(c)
	ok(c, http.StatusOK, nil)
}

// tokenRefresh mints a fresh access token from the TP_RT cookie (spec §6
// "POST /auth/token-refresh").
func (h *Handlers) tokenRefresh(c *gin.Context) {
	refreshToken := h.refreshTokenCookie(c)
	if refreshToken == "" {
		badRequest(c, apperr.CodeInvalidToken, "refresh token cookie not present")
		return
	}

	accessToken, err := h.auth.RefreshToken(c.Request.Context(), refreshToken)
	if err != nil {
		writeError(c, err)
		return
	}

	h.setAccessCookie(c, accessToken)
	ok(c, http.StatusOK, nil)
}

// guestToken completes the guest-token round trip started over the lobby
// streaming connection's GET_TOKEN frame (spec §6 "GET /auth/guest-token").
func (h *Handlers) guestToken(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		badRequest(c, apperr.CodeValidation, "key is required")
		return
	}

	accessToken, err := h.guestTokens.Get(c.Request.Context(), key)
	if err != nil {
		writeError(c, err)
		return
	}

	h.setAccessCookie(c, accessToken)
	ok(c, http.StatusOK, nil)
}
