package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ebookviewer/internal/pkg/response"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger logs one line per request and turns panics into a 500 envelope.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("request_id", rid)
		c.Writer.Header().Set(requestIDHeader, rid)

		defer func() {
			if recovered := recover(); recovered != nil {
				log.Error("panic recovered",
					zap.String("request_id", rid),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("panic", fmt.Sprint(recovered)),
					zap.ByteString("stack", debug.Stack()),
				)
				response.Abort(c, http.StatusInternalServerError, response.CodeInternal, "Internal server error")
			}
			logRequest(log, c, rid, start)
		}()

		c.Next()
	}
}

func logRequest(log *zap.Logger, c *gin.Context, rid string, start time.Time) {
	status := c.Writer.Status()
	fields := []zap.Field{
		zap.String("request_id", rid),
		zap.String("method", c.Request.Method),
		zap.String("route", routeOf(c)),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
		zap.String("client_ip", c.ClientIP()),
	}
	if username := c.GetString(ctxUsernameKey); username != "" {
		fields = append(fields, zap.String("username", username))
	}
	if len(c.Errors) > 0 {
		fields = append(fields, zap.String("errors", c.Errors.String()))
	}

	switch {
	case status >= http.StatusInternalServerError:
		log.Error("request", fields...)
	case status >= http.StatusBadRequest:
		log.Warn("request", fields...)
	default:
		log.Info("request", fields...)
	}
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
