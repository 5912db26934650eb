package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"docvault-api/internal/shared/metrics"
)

// Metrics records request counts and durations per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
