package middleware

import (
	"io"
	"net/http"
	"time"

	"github.com/bhandras/kubechat/shared/logger"
	"github.com/gin-gonic/gin"
)

// LoggingMiddleware logs HTTP requests. WebSocket requests are logged when the
// connection ends, so their latency is the connection lifetime.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		switch {
		case status >= http.StatusInternalServerError:
			logger.Errorf("[http] %s %s - %d (%v)", c.Request.Method, path, status, latency)
		case status >= http.StatusBadRequest:
			logger.Warnf("[http] %s %s - %d (%v)", c.Request.Method, path, status, latency)
		default:
			logger.Debugf("[http] %s %s - %d (%v)", c.Request.Method, path, status, latency)
		}
	}
}

// Recovery turns handler panics into a plain 500 response.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.Errorf("[http] %s %s: panic: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		c.Abort()
	})
}
