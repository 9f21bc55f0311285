package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-ID"

// RequestID 沿用调用方传入的 X-Request-ID, 没有则生成
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// LoggerMiddleware 记录请求, 并处理 panic
func LoggerMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				var errMsg string
				if e, ok := r.(error); ok {
					errMsg = e.Error()
				} else {
					errMsg = fmt.Sprintf("%v", r)
				}
				abort(c, http.StatusInternalServerError, "internal server error")
				requestEvent(logger.Error(), c, start).Str("error", errMsg).Msg("request panicked")
			}
		}()

		c.Next()

		evt := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = logger.Error()
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}
		requestEvent(evt, c, start).Msg("request completed")
	}
}

func requestEvent(evt *zerolog.Event, c *gin.Context, start time.Time) *zerolog.Event {
	return evt.
		Str("request_id", c.GetString(ContextRequestID)).
		Str("user_id", c.GetString(ContextUserID)).
		Str("role", c.GetString(ContextRole)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", c.Writer.Status()).
		Dur("latency", time.Since(start))
}
