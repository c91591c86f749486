package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPObserver receives one observation per request.
type HTTPObserver interface {
	HTTPStarted()
	HTTPFinished(method, route string, status int, d time.Duration)
}

// Metrics records request counts and latencies labelled by route template,
// so /companies/:code does not create one series per code.
func Metrics(observer HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		observer.HTTPStarted()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observer.HTTPFinished(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
