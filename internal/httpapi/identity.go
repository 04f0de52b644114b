package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/AlexFangSW/typephoon/internal/apperr"
	"github.com/AlexFangSW/typephoon/internal/model"
)

// caller is the identity resolved from the TP_AT cookie.
type caller struct {
	UserID   string
	Username string
	UserType model.UserType
}

// requireCaller validates the access-token cookie and writes a 400
// INVALID_TOKEN response if it is missing or fails validation (spec §7).
func (h *Handlers) requireCaller(c *gin.Context) (caller, bool) {
	accessToken := h.accessTokenCookie(c)
	if accessToken == "" {
		writeError(c, apperr.New(apperr.CodeInvalidToken, "access token cookie not present"))
		return caller{}, false
	}
	claims, err := h.validator.Validate(accessToken)
	if err != nil {
		writeError(c, err)
		return caller{}, false
	}
	return caller{UserID: claims.Subject, Username: claims.Name, UserType: claims.UserType}, true
}
