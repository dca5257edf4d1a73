package middleware

import (
	"Courier/internal/pkg/logger"

	"github.com/gin-gonic/gin"
)

const traceHeader = "X-Trace-ID"

// TraceMiddleware 沿用上游的 X-Trace-ID，缺省时生成
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := logger.WithTraceID(c.Request.Context(), c.GetHeader(traceHeader))
		traceID := logger.TraceIDFrom(ctx)

		c.Set(logger.TraceIDKey, traceID)
		c.Request = c.Request.WithContext(ctx)

		c.Header(traceHeader, traceID)
		c.Next()
	}
}
