package middleware

import (
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// Logger emits one structured line per gateway request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if path == "/health" {
			c.Next()
			return
		}

		c.Next()

		entry := log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})

		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request")
		}
	}
}
