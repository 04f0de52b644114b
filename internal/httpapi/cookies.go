package httpapi

import (
	"net/url"

	"github.com/gin-gonic/gin"
)

// Cookie names fixed by spec §6.
const (
	cookieAccessToken  = "TP_AT"
	cookieRefreshToken = "TP_RT"
	cookieUsername     = "USERNAME"
)

// setAuthCookies sets all three post-login cookies. Every one of them lives
// for refresh_duration, same as the original's literal set_cookie calls:
// access and refresh tokens are opaque to the browser either way, so there's
// no reason to shorten the access cookie's age and force an early bounce to
// token-refresh.
func (h *Handlers) setAuthCookies(c *gin.Context, accessToken, refreshToken, username string) {
	maxAge := int(h.cfg.Token.RefreshDuration.Seconds())
	c.SetCookie(cookieAccessToken, accessToken, maxAge, "/", "", true, true)
	c.SetCookie(cookieRefreshToken, refreshToken, maxAge, h.cfg.Token.RefreshEndpoint, "", true, true)
	c.SetCookie(cookieUsername, url.QueryEscape(username), maxAge, "/", "", true, true)
}

// setAccessCookie sets only the access-token cookie, used by token-refresh
// and guest-token (spec §4.3).
func (h *Handlers) setAccessCookie(c *gin.Context, accessToken string) {
	maxAge := int(h.cfg.Token.RefreshDuration.Seconds())
	c.SetCookie(cookieAccessToken, accessToken, maxAge, "/", "", true, true)
}

// clearAuthCookies deletes all three post-login cookies on logout.
func (h *Handlers) clearAuthCookies(c *gin.Context) {
	c.SetCookie(cookieAccessToken, "", -1, "/", "", true, true)
	c.SetCookie(cookieRefreshToken, "", -1, h.cfg.Token.RefreshEndpoint, "", true, true)
	c.SetCookie(cookieUsername, "", -1, "/", "", true, true)
}

func (h *Handlers) accessTokenCookie(c *gin.Context) string {
	v, _ := c.Cookie(cookieAccessToken)
	return v
}

func (h *Handlers) refreshTokenCookie(c *gin.Context) string {
	v, _ := c.Cookie(cookieRefreshToken)
	return v
}
