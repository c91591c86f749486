package middleware

import (
	"github.com/gin-gonic/gin"
)

// cspAPI forbids loading anything from a response; every route serves JSON.
const cspAPI = "default-src 'none'; frame-ancestors 'none'"

const hsts = "max-age=31536000; includeSubDomains"

// responseHeaders are set on every response, errors included.
var responseHeaders = map[string]string{
	"X-Frame-Options":         "DENY",
	"X-Content-Type-Options":  "nosniff",
	"Referrer-Policy":         "no-referrer",
	"Content-Security-Policy": cspAPI,
	"Cache-Control":           "no-store",
}

// SecurityHeaders sets the fixed response headers. HSTS is added for TLS
// requests and, in production, for requests a proxy reports as https.
func SecurityHeaders(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		for name, value := range responseHeaders {
			h.Set(name, value)
		}
		if c.Request.TLS != nil || (production && c.GetHeader("X-Forwarded-Proto") == "https") {
			h.Set("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}
