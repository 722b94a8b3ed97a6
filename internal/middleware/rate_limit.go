package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"autobook/pkg/log"
)

// MiddlewareRateLimitConfig rate limiting middleware configuration
type MiddlewareRateLimitConfig struct {
	// Rate requests per second
	Rate float64
	// Burst maximum burst size
	Burst int
	// KeyFunc function to generate rate limit key
	KeyFunc func(c *gin.Context) string
	// ErrorHandler error handling function
	ErrorHandler func(c *gin.Context)
	// SkipFunc function to skip rate limiting
	SkipFunc func(c *gin.Context) bool
}

// DefaultMiddlewareRateLimitConfig default rate limiting configuration
func DefaultMiddlewareRateLimitConfig() MiddlewareRateLimitConfig {
	return MiddlewareRateLimitConfig{
		Rate:  100,
		Burst: 200,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
		ErrorHandler: func(c *gin.Context) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": "Too many requests",
			})
			c.Abort()
		},
		SkipFunc: func(c *gin.Context) bool {
			return false
		},
	}
}

// RateLimit rate limiting middleware
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	config := DefaultMiddlewareRateLimitConfig()
	config.Rate = rps
	config.Burst = burst
	return RateLimitWithConfig(config)
}

// RateLimitWithConfig rate limiting middleware with configuration
func RateLimitWithConfig(config MiddlewareRateLimitConfig) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		if config.SkipFunc(c) {
			c.Next()
			return
		}

		key := config.KeyFunc(c)

		mu.Lock()
		limiter, exists := limiters[key]
		if !exists {
			limiter = rate.NewLimiter(rate.Limit(config.Rate), config.Burst)
			limiters[key] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			log.WithFields(map[string]interface{}{
				"key":    key,
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
				"ip":     c.ClientIP(),
			}).Warn("Rate limit exceeded")

			config.ErrorHandler(c)
			c.Abort()
			return
		}

		c.Next()
	}
}

// IPRateLimit IP-based rate limiting middleware
func IPRateLimit(rps float64, burst int) gin.HandlerFunc {
	config := DefaultMiddlewareRateLimitConfig()
	config.Rate = rps
	config.Burst = burst
	config.KeyFunc = func(c *gin.Context) string {
		return c.ClientIP()
	}
	return RateLimitWithConfig(config)
}

// UserRateLimit user-based rate limiting middleware
func UserRateLimit(rps float64, burst int) gin.HandlerFunc {
	config := DefaultMiddlewareRateLimitConfig()
	config.Rate = rps
	config.Burst = burst
	config.KeyFunc = func(c *gin.Context) string {
		userID, ok := GetUserID(c)
		if !ok {
			return c.ClientIP()
		}
		return fmt.Sprintf("user:%d", userID)
	}
	return RateLimitWithConfig(config)
}

// APIRateLimit API-based rate limiting middleware
func APIRateLimit(rps float64, burst int) gin.HandlerFunc {
	config := DefaultMiddlewareRateLimitConfig()
	config.Rate = rps
	config.Burst = burst
	config.KeyFunc = func(c *gin.Context) string {
		return fmt.Sprintf("%s:%s", c.ClientIP(), c.Request.URL.Path)
	}
	return RateLimitWithConfig(config)
}

// ChargeRateLimit per-user rate limiting for the charge endpoint. The charge
// pipeline carries its own Redis-backed limits, this one just sheds abusive
// clients before they reach it.
func ChargeRateLimit() gin.HandlerFunc {
	config := DefaultMiddlewareRateLimitConfig()
	config.Rate = 10
	config.Burst = 20
	config.KeyFunc = func(c *gin.Context) string {
		userID, ok := GetUserID(c)
		if !ok {
			return c.ClientIP()
		}
		return fmt.Sprintf("charge:%d", userID)
	}
	config.ErrorHandler = func(c *gin.Context) {
		c.Header("X-RateLimit-Limit", strconv.FormatFloat(config.Rate, 'f', 0, 64))
		c.Header("X-RateLimit-Remaining", "0")
		c.Header("Retry-After", "1")
		c.JSON(http.StatusTooManyRequests, gin.H{
			"code":    429,
			"message": "Charge rate limit exceeded, please try again later",
		})
	}
	return RateLimitWithConfig(config)
}
