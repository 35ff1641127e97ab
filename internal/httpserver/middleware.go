package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"brewpos/internal/domain"
	"brewpos/internal/metrics"
	"brewpos/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader   = "X-Request-ID"
	idempotencyHeader = "Idempotency-Key"

	sessionCtxKey   = "pos.session"
	requestIDCtxKey = "pos.request_id"
)

// requestLogger tags each request with an ID and logs it once the handler returns.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("access")
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDCtxKey, id)
		c.Header(requestIDHeader, id)

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// instrument records request counts and latency by route template.
func instrument(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// sessionMiddleware resolves :sessionID and stores the open session on the context.
func sessionMiddleware(reg sessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionID")
		s, err := reg.Get(id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Error: "not_found", Message: "session not found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal", Message: "failed to resolve session"})
			return
		}
		c.Set(sessionCtxKey, s)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) session.Session {
	v, _ := c.Get(sessionCtxKey)
	s, _ := v.(session.Session)
	return s
}
