package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mensajeria/internal/domain"
	"mensajeria/internal/requestlog"
)

const requestIDHeader = "X-Request-ID"

// NewRouter returns an engine with request logging, panic recovery and CORS
// installed. ring may be nil when entries need not be kept.
func NewRouter(logger logrus.FieldLogger, ring *requestlog.Ring) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(logger, ring), gin.Recovery(), corsMiddleware())
	return router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger sits outermost so recovered panics are recorded as 500.
func requestLogger(logger logrus.FieldLogger, ring *requestlog.Ring) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, requestID)

		c.Next()
		elapsed := float64(time.Since(start).Microseconds()) / 1000

		entry := domain.RequestLog{
			Timestamp:        start,
			Method:           c.Request.Method,
			Path:             c.Request.URL.Path,
			ClientIP:         c.ClientIP(),
			UserAgent:        c.Request.UserAgent(),
			StatusCode:       c.Writer.Status(),
			ProcessingTimeMs: elapsed,
		}
		if ring != nil {
			ring.Append(entry)
		}
		logger.WithField("request_id", requestID).
			Infof("%s %s - %d - %.2fms", entry.Method, entry.Path, entry.StatusCode, entry.ProcessingTimeMs)
	}
}

func abortDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

// abortBinding answers 422 for malformed or incomplete bodies.
func abortBinding(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
}
