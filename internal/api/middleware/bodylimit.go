package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MacJediWizard/orgtree/internal/apperr"
)

// DefaultBodyLimit bounds request bodies on the JSON API.
const DefaultBodyLimit int64 = 1 << 20

// BodyLimit rejects a request whose declared length exceeds maxBytes before
// any handler runs. Bodies of unknown length are capped instead, so an
// oversized chunked body fails while the handler decodes it.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			AbortWithError(c, apperr.Validation("request body exceeds %d bytes", maxBytes))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
