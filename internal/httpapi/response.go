package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/AlexFangSW/typephoon/internal/apperr"
)

// ok writes the {result: true, ...extra} envelope every 2xx JSON response
// carries (spec §7, grounded on
// original_source/types/responses/base.py's SuccessResponse).
func ok(c *gin.Context, status int, extra gin.H) {
	body := gin.H{"result": true}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

// writeError writes the ErrorResponse envelope: {result: false, error: {code, message}}.
func writeError(c *gin.Context, err error) {
	apperror, ok := err.(*apperr.Error)
	if !ok {
		apperror = apperr.Wrap(apperr.CodeUnknown, "unexpected error", err)
	}
	c.JSON(apperr.HTTPStatus(apperror.Code), gin.H{
		"result": false,
		"error": gin.H{
			"code":    apperror.Code,
			"message": apperror.Message,
		},
	})
}

func badRequest(c *gin.Context, code apperr.Code, message string) {
	writeError(c, apperr.New(code, message))
}
