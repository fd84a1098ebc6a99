// Package middleware holds the cross-cutting HTTP middleware: request IDs,
// request logging, and the webhook shared-secret guard.
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/isaacasamoah/piano-move-ai/platform/httpkit"
	"github.com/isaacasamoah/piano-move-ai/platform/logger"
)

// RequestIDHeader is echoed back so providers can correlate webhook retries.
const RequestIDHeader = "X-Request-ID"

// WebhookSecretHeader carries the shared secret on telephony webhooks.
const WebhookSecretHeader = "X-Webhook-Secret"

// RequestID assigns each request a UUID (or adopts the caller's) and stores it
// in the request context for the logger.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestTimer logs one structured line per request.
func RequestTimer(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithContext(c.Request.Context()).HTTPRequest(
			c.Request.Method,
			c.FullPath(),
			c.Writer.Status(),
			float64(time.Since(start).Microseconds())/1000.0,
			c.ClientIP(),
		)
	}
}

// WebhookAuth rejects webhook calls that do not carry the shared secret.
// With no secret configured the guard is disabled, which is only acceptable
// in development.
func WebhookAuth(secret string, log *logger.Logger) gin.HandlerFunc {
	if secret == "" {
		log.Warn("webhook secret not configured, webhook endpoints are unauthenticated")
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		provided := c.GetHeader(WebhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			httpkit.Error(c, http.StatusUnauthorized, "invalid webhook secret", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
