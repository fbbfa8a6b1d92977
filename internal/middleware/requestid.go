package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fleet/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID propagates or assigns X-Request-ID and stores it in the request
// context for the logger.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), logger.RequestIDKey, id))
		c.Next()
	}
}
