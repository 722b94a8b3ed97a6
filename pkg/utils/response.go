package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Response standard response structure
type Response struct {
	Code      ResponseCode `json:"code"`
	Message   string       `json:"message"`
	Data      interface{}  `json:"data,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// SuccessResponse returns success response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      CodeSuccess,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// ErrorResponse returns error response with a business code
func ErrorResponse(c *gin.Context, httpCode int, code ResponseCode, message string) {
	c.JSON(httpCode, Response{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// Error shortcut for middleware: business code decides the HTTP status
func Error(c *gin.Context, code ResponseCode, message string) {
	httpCode := http.StatusBadRequest
	switch code {
	case CodeUnauthorized:
		httpCode = http.StatusUnauthorized
	case CodeForbidden:
		httpCode = http.StatusForbidden
	case CodeRateLimit:
		httpCode = http.StatusTooManyRequests
	case CodeCampaignNotFound, CodeBookingRequestNotFound:
		httpCode = http.StatusNotFound
	case CodeProviderUnavailable:
		httpCode = http.StatusBadGateway
	case CodeInternalError, CodeDatabaseError, CodeRedisError:
		httpCode = http.StatusInternalServerError
	}
	ErrorResponse(c, httpCode, code, message)
}

// FailedResponse returns a 200 response carrying a failure payload
func FailedResponse(c *gin.Context, code ResponseCode, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      code,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}
