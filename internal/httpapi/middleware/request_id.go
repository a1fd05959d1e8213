package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

type contextKey struct{}

var RequestIDContextKey = contextKey{}

// RequestID generates and injects a unique request ID for traceability.
// Unlike the time-derived ID this package's teacher used, uuid.NewString
// guarantees uniqueness under concurrent requests without relying on
// nanosecond clock resolution.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), RequestIDContextKey, requestID))

		startedAt := time.Now()
		logger := slog.With("request_id", requestID)
		logger.Info("request started",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)

		c.Next()

		logger.Info("request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(startedAt).Milliseconds(),
		)
	}
}
