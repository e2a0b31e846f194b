// Package middleware holds the gin middleware shared by every route.
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/courier-dispatch/core/logger"
	"github.com/kilianp07/courier-dispatch/core/monitoring"
)

// AccessLog logs one structured line per request.
func AccessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := map[string]any{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
			"client_ip":   c.ClientIP(),
		}
		if id := c.Writer.Header().Get("X-Run-ID"); id != "" {
			fields["run_id"] = id
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warnw("request failed", fields)
			return
		}
		log.Debugw("request", fields)
	}
}

// Recovery turns a panic into a 500 response and reports it to the monitor.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
				monitoring.CapturePanic(r, map[string]string{"route": c.FullPath()})
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}
