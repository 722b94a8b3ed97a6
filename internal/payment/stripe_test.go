package payment

import (
	"errors"
	"testing"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autobook/internal/model"
)

func TestStripeProvider_MapIntent(t *testing.T) {
	p := NewStripeProvider("sk_test_x")

	tests := []struct {
		name       string
		status     stripe.PaymentIntentStatus
		wantStatus string
	}{
		{"succeeded", stripe.PaymentIntentStatusSucceeded, model.IntentStatusSucceeded},
		{"requires_action", stripe.PaymentIntentStatusRequiresAction, model.IntentStatusRequiresAction},
		{"requires_confirmation", stripe.PaymentIntentStatusRequiresConfirmation, model.IntentStatusRequiresAction},
		{"requires_payment_method", stripe.PaymentIntentStatusRequiresPaymentMethod, model.IntentStatusFailed},
		{"canceled", stripe.PaymentIntentStatusCanceled, model.IntentStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.mapIntent(&stripe.PaymentIntent{
				ID:     "pi_123",
				Status: tt.status,
			})
			assert.Equal(t, "pi_123", result.IntentRef)
			assert.Equal(t, tt.wantStatus, result.Status)
		})
	}
}

func TestStripeProvider_MapError_CardDecline(t *testing.T) {
	p := NewStripeProvider("sk_test_x")

	stripeErr := &stripe.Error{
		Type:        stripe.ErrorTypeCard,
		Code:        stripe.ErrorCodeCardDeclined,
		DeclineCode: "insufficient_funds",
		PaymentIntent: &stripe.PaymentIntent{
			ID: "pi_declined",
		},
	}

	result, err := p.mapError(stripeErr)
	require.NoError(t, err, "a hard decline resolves the attempt, it is not an error")

	assert.Equal(t, model.IntentStatusFailed, result.Status)
	assert.Equal(t, "insufficient_funds", result.FailureCode)
	assert.Equal(t, "pi_declined", result.IntentRef)
}

func TestStripeProvider_MapError_AuthenticationRequired(t *testing.T) {
	p := NewStripeProvider("sk_test_x")

	stripeErr := &stripe.Error{
		Type: stripe.ErrorTypeCard,
		Code: stripe.ErrorCodeAuthenticationRequired,
		PaymentIntent: &stripe.PaymentIntent{
			ID: "pi_challenge",
			NextAction: &stripe.PaymentIntentNextAction{
				Type: "use_stripe_sdk",
			},
		},
	}

	result, err := p.mapError(stripeErr)
	require.NoError(t, err)

	assert.Equal(t, model.IntentStatusRequiresAction, result.Status)
	assert.Equal(t, "pi_challenge", result.IntentRef)
	assert.NotEmpty(t, result.NextAction)
}

func TestStripeProvider_MapError_APIError(t *testing.T) {
	p := NewStripeProvider("sk_test_x")

	stripeErr := &stripe.Error{
		Type:           stripe.ErrorTypeAPI,
		HTTPStatusCode: 500,
	}

	result, err := p.mapError(stripeErr)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsUnavailable(err))
}

func TestStripeProvider_MapError_InvalidRequest(t *testing.T) {
	p := NewStripeProvider("sk_test_x")

	stripeErr := &stripe.Error{
		Type: stripe.ErrorTypeInvalidRequest,
		Code: stripe.ErrorCodeParameterMissing,
	}

	result, err := p.mapError(stripeErr)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsInvalid(err))
}

func TestStripeProvider_MapError_Transport(t *testing.T) {
	p := NewStripeProvider("sk_test_x")

	result, err := p.mapError(errors.New("connection reset"))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsUnavailable(err))
}

func TestProviderError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &ProviderError{Provider: "stripe", Kind: KindUnavailable, Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "stripe")
}
