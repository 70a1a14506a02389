package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ceyewan/sctid-kit/clog"
)

// TraceHeader 请求与响应中携带 trace_id 的头部
const TraceHeader = "X-Trace-ID"

// TraceMiddleware 读取或生成 trace_id 并写入请求 context
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}

		ctx := clog.WithTraceID(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceHeader, traceID)

		c.Next()
	}
}

// LoggingMiddleware 请求完成后记录日志
func LoggingMiddleware(logger clog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		fields := []clog.Field{
			clog.String("trace_id", clog.TraceID(c.Request.Context())),
			clog.String("method", method),
			clog.String("path", path),
			clog.Int("status", status),
			clog.Duration("latency", time.Since(start)),
			clog.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, clog.String("error", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP request rejected", fields...)
		default:
			logger.Info("HTTP request completed", fields...)
		}
	}
}

// RecoveryMiddleware 捕获 panic 并返回 500
func RecoveryMiddleware(logger clog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic while handling HTTP request",
					clog.String("trace_id", clog.TraceID(c.Request.Context())),
					clog.Any("panic", err),
					clog.String("path", c.Request.URL.Path))

				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
					Code:    codeInternal,
					Message: "internal server error",
					TraceID: clog.TraceID(c.Request.Context()),
				})
			}
		}()

		c.Next()
	}
}
