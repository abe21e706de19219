package middleware

import (
	"time"

	"classhub/internal/core/domain"
	"classhub/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TracingMiddleware traces each HTTP request. Spans carry the session or
// action identifier from the route and, when authenticated, the caller's
// identity, so a trace can be followed from the REST surface into the hub.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, c.FullPath())
		defer span.End()

		span.SetAttributes(
			attribute.String("http.host", c.Request.Host),
			attribute.String("http.remote_addr", c.ClientIP()),
		)
		if id := c.Param("id"); id != "" {
			span.SetAttributes(tracing.SessionIDKey.String(id))
		}
		if deviceID := c.Query("device_id"); deviceID != "" {
			span.SetAttributes(tracing.DeviceIDKey.String(deviceID))
		}

		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Auth runs inside the group, so the caller is only known afterwards.
		if v, ok := c.Get(ContextUserID); ok {
			if userID, ok := v.(domain.UserID); ok {
				span.SetAttributes(tracing.UserIDKey.String(string(userID)))
			}
		}

		span.SetAttributes(
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.duration_ms", duration.Milliseconds()),
		)

		if c.Writer.Status() >= 400 {
			span.SetStatus(codes.Error, c.Errors.String())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}
