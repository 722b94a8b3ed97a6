package payment

import (
	"context"
	"errors"
	"fmt"
)

// Provider is a payment service provider able to charge a stored instrument
// off-session and refund a captured charge.
type Provider interface {
	// Name returns the provider identifier stored on intent records
	Name() string

	// CreateIntent charges the stored instrument. Declines come back as an
	// IntentResult with a failed status, not as an error; errors mean the
	// attempt could not be resolved at all.
	CreateIntent(ctx context.Context, req *ChargeRequest) (*IntentResult, error)

	// Refund refunds a captured intent in full
	Refund(ctx context.Context, req *RefundRequest) error
}

// ChargeRequest describes one off-session charge attempt
type ChargeRequest struct {
	IdempotencyKey string
	Amount         int64 // minor units
	Currency       string
	CustomerRef    string
	InstrumentRef  string
	Description    string
	Metadata       map[string]string
}

// IntentResult is the provider outcome in canonical terms
type IntentResult struct {
	IntentRef   string
	Provider    string
	Status      string // succeeded, requires_action, failed
	FailureCode string
	NextAction  []byte // raw challenge payload when requires_action
}

// RefundRequest describes a full refund of a captured intent
type RefundRequest struct {
	IntentRef      string
	IdempotencyKey string
	Reason         string
}

// ErrorKind classifies provider errors for routing decisions
type ErrorKind int

const (
	// KindUnavailable transport failure, timeout or provider 5xx; the
	// charge may be retried on the secondary provider
	KindUnavailable ErrorKind = iota

	// KindInvalid the provider rejected the request shape; retrying
	// anywhere with the same input cannot succeed
	KindInvalid
)

// ProviderError wraps a provider failure with its routing classification
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Code     string
	Err      error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err represents provider unavailability
func IsUnavailable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == KindUnavailable
}

// IsInvalid reports whether err represents an unretryable request error
func IsInvalid(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == KindInvalid
}
