package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	requestIDHeader     = "X-Request-ID"
	requestIDContextKey = "zavvetka_request_id"
)

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:  []string{"Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	origins := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			config.AllowAllOrigins = true
			origins = nil
			break
		}
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if !config.AllowAllOrigins {
		if len(origins) == 0 {
			config.AllowAllOrigins = true
		} else {
			config.AllowOrigins = origins
		}
	}
	return cors.New(config)
}

// requestLogger tags every request with an id and writes one entry once it completes.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDContextKey, requestID)
		c.Header(requestIDHeader, requestID)

		started := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := zapcore.InfoLevel
		switch {
		case status >= http.StatusInternalServerError:
			level = zapcore.ErrorLevel
		case status >= http.StatusBadRequest:
			level = zapcore.WarnLevel
		}
		if entry := logger.Check(level, "http request"); entry != nil {
			entry.Write(
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(started)),
				zap.String("request_id", requestID),
			)
		}
	}
}

// noStoreMiddleware keeps note payloads and access-bearing pages out of shared caches.
func noStoreMiddleware(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Next()
}

func recoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic while handling request",
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.String("panic", fmt.Sprint(recovered)))
		respondError(c, http.StatusInternalServerError, errorCodeInternal)
	})
}
