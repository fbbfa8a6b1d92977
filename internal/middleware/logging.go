package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"fleet/internal/logger"
)

// AccessLog writes one line per request through log. Server errors are
// logged at error level together with the errors the handler attached.
func AccessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ctx := c.Request.Context()
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		latency := time.Since(start)

		switch {
		case status >= 500:
			log.Errorf(ctx, "%s %s %d %s %s", c.Request.Method, path, status, latency, c.Errors.String())
		case status >= 400:
			log.Warnf(ctx, "%s %s %d %s", c.Request.Method, path, status, latency)
		default:
			log.Infof(ctx, "%s %s %d %s", c.Request.Method, path, status, latency)
		}
	}
}
