package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"fleet/internal/logger"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	idempotencyPrefix = "idempotency:"
	idempotencyTTL    = 24 * time.Hour
	// inFlightTTL bounds how long a crashed request can block its key.
	inFlightTTL = time.Minute
)

var inFlightMarker = []byte(`{"in_flight":true}`)

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
	Headers    http.Header     `json:"headers"`
	InFlight   bool            `json:"in_flight,omitempty"`
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response of a POST that carries an
// Idempotency-Key already seen on the same route. A retry that arrives while
// the first request is still running gets 409. Redis failures disable the
// check for that request only.
func Idempotency(client *redis.Client, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := idempotencyPrefix + c.Request.Method + ":" + c.FullPath() + ":" + key

		reserved, err := client.SetNX(ctx, cacheKey, inFlightMarker, inFlightTTL).Result()
		if err != nil {
			log.Warnf(ctx, "idempotency reserve %s: %v", key, err)
			c.Next()
			return
		}

		if !reserved {
			cached, err := getCachedResponse(ctx, client, cacheKey)
			switch {
			case errors.Is(err, redis.Nil):
				// Expired between SETNX and GET.
				c.Next()
			case err != nil:
				log.Warnf(ctx, "idempotency lookup %s: %v", key, err)
				c.Next()
			case cached.InFlight:
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a request with this idempotency key is in progress"})
			default:
				for k, v := range cached.Headers {
					for _, val := range v {
						c.Header(k, val)
					}
				}
				c.Header(replayedHeader, "true")
				c.Data(cached.StatusCode, "application/json", cached.Body)
				c.Abort()
			}
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		// The request context may already be done once the handler returns.
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()

		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			// Let the client retry a failed attempt.
			if err := client.Del(storeCtx, cacheKey).Err(); err != nil {
				log.Warnf(ctx, "idempotency release %s: %v", key, err)
			}
			return
		}

		response := cachedResponse{
			StatusCode: status,
			Body:       w.body.Bytes(),
			Headers:    extractResponseHeaders(c),
		}
		if err := setCachedResponse(storeCtx, client, cacheKey, &response, idempotencyTTL); err != nil {
			log.Warnf(ctx, "idempotency store %s: %v", key, err)
		}
	}
}

// getCachedResponse retrieves a cached response from Redis.
func getCachedResponse(ctx context.Context, client *redis.Client, key string) (*cachedResponse, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	return &cached, nil
}

// setCachedResponse stores a response in Redis.
func setCachedResponse(ctx context.Context, client *redis.Client, key string, response *cachedResponse, ttl time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}

	return client.Set(ctx, key, data, ttl).Err()
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	// Only cache Content-Type and Location headers.
	for _, h := range []string{"Content-Type", "Location"} {
		if v := c.Writer.Header().Get(h); v != "" {
			headers.Set(h, v)
		}
	}
	return headers
}
