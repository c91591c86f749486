package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/MacJediWizard/orgtree/internal/apperr"
)

// ErrorDetail is the machine-readable part of a failed response.
type ErrorDetail struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

// ErrorResponse is the envelope of every failed response.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// AbortWithError writes the error envelope for err and aborts the chain.
// Only apperr messages reach the client; anything else becomes INTERNAL.
func AbortWithError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.CodeInternal {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(code), ErrorResponse{
		Error: ErrorDetail{Code: code, Message: apperr.PublicMessage(err)},
	})
}
