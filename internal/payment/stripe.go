package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"autobook/internal/model"
)

// StripeProvider charges stored instruments through Stripe PaymentIntents.
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider creates a Stripe provider from an API key
func NewStripeProvider(apiKey string) *StripeProvider {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeProvider{api: api}
}

// NewStripeProviderWithClient creates a Stripe provider from an existing client
func NewStripeProviderWithClient(api *client.API) *StripeProvider {
	return &StripeProvider{api: api}
}

// Name returns the provider identifier
func (p *StripeProvider) Name() string {
	return model.ProviderPrimary
}

// CreateIntent charges the stored instrument off-session with confirm so the
// outcome is known synchronously.
func (p *StripeProvider) CreateIntent(ctx context.Context, req *ChargeRequest) (*IntentResult, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		Customer:      stripe.String(req.CustomerRef),
		PaymentMethod: stripe.String(req.InstrumentRef),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return p.mapError(err)
	}

	return p.mapIntent(pi), nil
}

// Refund refunds a captured intent in full
func (p *StripeProvider) Refund(ctx context.Context, req *RefundRequest) error {
	params := &stripe.RefundParams{
		Params: stripe.Params{
			Context: ctx,
		},
		PaymentIntent: stripe.String(req.IntentRef),
	}
	params.SetIdempotencyKey(req.IdempotencyKey)

	if _, err := p.api.Refunds.New(params); err != nil {
		_, mapped := p.mapError(err)
		return mapped
	}
	return nil
}

// mapIntent translates a Stripe intent into the canonical result
func (p *StripeProvider) mapIntent(pi *stripe.PaymentIntent) *IntentResult {
	result := &IntentResult{
		IntentRef: pi.ID,
		Provider:  p.Name(),
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result.Status = model.IntentStatusSucceeded
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation:
		result.Status = model.IntentStatusRequiresAction
		if pi.NextAction != nil {
			result.NextAction, _ = json.Marshal(pi.NextAction)
		}
	case stripe.PaymentIntentStatusRequiresPaymentMethod, stripe.PaymentIntentStatusCanceled:
		result.Status = model.IntentStatusFailed
		result.FailureCode = "payment_method_unusable"
	default:
		result.Status = model.IntentStatusFailed
		result.FailureCode = "unexpected_status_" + string(pi.Status)
	}

	return result
}

// mapError classifies a Stripe error. Card declines resolve the attempt and
// come back as a failed result; everything else is a ProviderError.
func (p *StripeProvider) mapError(err error) (*IntentResult, error) {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		// Transport level failure, the API was never reached
		return nil, &ProviderError{Provider: p.Name(), Kind: KindUnavailable, Err: err}
	}

	switch stripeErr.Type {
	case stripe.ErrorTypeCard:
		result := &IntentResult{
			Provider: p.Name(),
		}
		if stripeErr.PaymentIntent != nil {
			result.IntentRef = stripeErr.PaymentIntent.ID
		}

		if stripeErr.Code == stripe.ErrorCodeAuthenticationRequired {
			result.Status = model.IntentStatusRequiresAction
			if stripeErr.PaymentIntent != nil && stripeErr.PaymentIntent.NextAction != nil {
				result.NextAction, _ = json.Marshal(stripeErr.PaymentIntent.NextAction)
			}
			return result, nil
		}

		result.Status = model.IntentStatusFailed
		result.FailureCode = string(stripeErr.Code)
		if stripeErr.DeclineCode != "" {
			result.FailureCode = string(stripeErr.DeclineCode)
		}
		return result, nil

	case stripe.ErrorTypeInvalidRequest:
		return nil, &ProviderError{Provider: p.Name(), Kind: KindInvalid, Code: string(stripeErr.Code), Err: err}

	default:
		// API errors, rate limits and idempotency conflicts all leave the
		// outcome unknown on this provider
		return nil, &ProviderError{Provider: p.Name(), Kind: KindUnavailable, Code: string(stripeErr.Code), Err: err}
	}
}
