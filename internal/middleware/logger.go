package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"autobook/pkg/log"
)

// Logger structured request logging through pkg/log
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		fields := map[string]interface{}{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
			"latency":    time.Since(start),
		}
		if uid, ok := GetUserID(c); ok {
			fields["user_id"] = uid
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			log.WithFields(fields).Error("Request failed")
		case status >= 400:
			log.WithFields(fields).Warn("Request rejected")
		default:
			log.WithFields(fields).Info("Request completed")
		}
	}
}
