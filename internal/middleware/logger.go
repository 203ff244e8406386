// Package middleware holds the gin stages every request passes through:
// the request logger, which always passes through, and the auth stage, which
// either forwards the request or short-circuits it.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/emilythestrangee/main-feed/backend/internal/observability"
)

const (
	RequestIDHeader = "X-Request-ID"

	// RequestIDLength is the length of generated correlation ids.
	RequestIDLength = 16

	requestIDKey = "mainfeed_request_id"
)

type requestIDCtxKey struct{}

// NewRequestID returns a random alphanumeric correlation id of
// RequestIDLength characters.
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:RequestIDLength]
}

// GetRequestID returns the correlation id of the current request, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// WithRequestID returns a copy of ctx carrying the correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey{}, id)
}

// RequestIDFromContext returns the correlation id stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}

// Logger returns the default logger annotated with the request's
// correlation id.
func Logger(c *gin.Context) *slog.Logger {
	return slog.Default().With("request_id", GetRequestID(c))
}

// RequestLogger assigns a correlation id to every request, logs its start and
// completion with the elapsed time and records request metrics. It never
// aborts the request.
func RequestLogger(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := NewRequestID()

		c.Set(requestIDKey, id)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)

		logger := slog.Default().With("request_id", id)
		logger.Info("request started",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"client_ip", c.ClientIP())

		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		logger.Info("request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"elapsed_ms", FormatElapsed(elapsed))

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveRequest(route, c.Request.Method, strconv.Itoa(status), elapsed)
	}
}

// FormatElapsed renders d in milliseconds with two decimals.
func FormatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d.Microseconds())/1000)
}
