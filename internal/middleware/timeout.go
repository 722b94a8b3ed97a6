package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"autobook/pkg/utils"
)

// TimeoutConfig timeout configuration
type TimeoutConfig struct {
	// Timeout timeout duration
	Timeout time.Duration
	// ErrorHandler timeout error handler function
	ErrorHandler gin.HandlerFunc
	// SkipFunc function to skip timeout check
	SkipFunc func(*gin.Context) bool
}

// DefaultTimeoutConfig default timeout configuration
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Timeout: 30 * time.Second,
		ErrorHandler: func(c *gin.Context) {
			utils.ErrorResponse(c, http.StatusRequestTimeout, utils.CodeInternalError, "Request timeout")
		},
		SkipFunc: nil,
	}
}

// Timeout timeout middleware
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return TimeoutWithConfig(TimeoutConfig{
		Timeout: timeout,
	})
}

// TimeoutWithConfig timeout middleware with configuration
func TimeoutWithConfig(config TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.SkipFunc != nil && config.SkipFunc(c) {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})

		go func() {
			defer func() {
				if r := recover(); r != nil {
					if config.ErrorHandler != nil {
						config.ErrorHandler(c)
					} else {
						c.JSON(http.StatusInternalServerError, gin.H{
							"error": "Internal server error",
						})
					}
				}
				close(done)
			}()
			c.Next()
		}()

		select {
		case <-done:
			return
		case <-ctx.Done():
			if config.ErrorHandler != nil {
				config.ErrorHandler(c)
			} else {
				c.JSON(http.StatusRequestTimeout, gin.H{
					"error":   "Request timeout",
					"timeout": config.Timeout.String(),
				})
			}
			c.Abort()
		}
	}
}

// ChargeTimeout timeout middleware for the charge endpoint. Provider calls
// can stall well past what a client should wait for, so the bound is tight.
func ChargeTimeout(timeout time.Duration) gin.HandlerFunc {
	config := DefaultTimeoutConfig()
	config.Timeout = timeout
	config.ErrorHandler = func(c *gin.Context) {
		utils.ErrorResponse(c, http.StatusRequestTimeout, utils.CodeInternalError, "Charge request timeout, please retry")
	}
	return TimeoutWithConfig(config)
}

// APITimeout API timeout middleware
func APITimeout(timeout time.Duration) gin.HandlerFunc {
	config := DefaultTimeoutConfig()
	config.Timeout = timeout
	config.ErrorHandler = func(c *gin.Context) {
		utils.ErrorResponse(c, http.StatusRequestTimeout, utils.CodeInternalError, "API request timeout")
	}
	return TimeoutWithConfig(config)
}
