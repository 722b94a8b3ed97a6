package utils

import (
	"errors"
	"fmt"
)

// ResponseCode business response code
type ResponseCode int

// Response codes
const (
	CodeSuccess ResponseCode = 0

	// Request errors
	CodeInvalidParam ResponseCode = 1001
	CodeUnauthorized ResponseCode = 1002
	CodeForbidden    ResponseCode = 1003
	CodeRateLimit    ResponseCode = 1004

	// Campaign / instrument errors
	CodeCampaignNotFound  ResponseCode = 2001
	CodeCampaignInactive  ResponseCode = 2002
	CodeBudgetExceeded    ResponseCode = 2003
	CodeInstrumentExpired ResponseCode = 2004
	CodeInstrumentMissing ResponseCode = 2005
	CodeCurrencyMismatch  ResponseCode = 2006

	// Payment errors
	CodePaymentDeclined     ResponseCode = 3001
	CodeChallengeRequired   ResponseCode = 3002
	CodeProviderUnavailable ResponseCode = 3003
	CodeRefundFailed        ResponseCode = 3004
	CodeBookingPaused       ResponseCode = 3005

	// Fulfillment errors
	CodeBookingRequestNotFound ResponseCode = 4001
	CodeFulfillmentFailed      ResponseCode = 4002

	// System errors
	CodeInternalError ResponseCode = 5001
	CodeDatabaseError ResponseCode = 5002
	CodeRedisError    ResponseCode = 5003
)

// AppError application error structure
type AppError struct {
	Code    ResponseCode `json:"code"`
	Message string       `json:"message"`
	Err     error        `json:"-"`
}

// Error implement error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code: %d, message: %s, error: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
}

// Unwrap implement errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError create new application error
func NewError(code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// WrapError wrap error
func WrapError(err error, code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Predefined errors
var (
	ErrInvalidParam = NewError(CodeInvalidParam, "invalid parameter")

	ErrCampaignNotFound  = NewError(CodeCampaignNotFound, "campaign not found")
	ErrCampaignInactive  = NewError(CodeCampaignInactive, "campaign is not active")
	ErrBudgetExceeded    = NewError(CodeBudgetExceeded, "offer price exceeds campaign budget")
	ErrInstrumentExpired = NewError(CodeInstrumentExpired, "payment instrument expired")
	ErrInstrumentMissing = NewError(CodeInstrumentMissing, "payment instrument not found")

	ErrPaymentDeclined     = NewError(CodePaymentDeclined, "payment declined")
	ErrProviderUnavailable = NewError(CodeProviderUnavailable, "payment provider unavailable")
	ErrBookingPaused       = NewError(CodeBookingPaused, "auto-booking is paused")

	ErrBookingRequestNotFound = NewError(CodeBookingRequestNotFound, "booking request not found")

	ErrInternalError = NewError(CodeInternalError, "internal server error")
	ErrDatabaseError = NewError(CodeDatabaseError, "database error")
	ErrRedisError    = NewError(CodeRedisError, "redis error")
)

// IsAppError check if it's an application error
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetErrorCode get error code
func GetErrorCode(err error) ResponseCode {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternalError
}

// GetErrorMessage get error message
func GetErrorMessage(err error) string {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
