package gateway

import (
	"context"
	"fmt"

	"autobook/internal/payment"
	"autobook/pkg/breaker"
	"autobook/pkg/log"
)

// Gateway routes charges across the configured providers. The primary takes
// every charge first; the secondary is tried exactly once, and only when the
// primary was unavailable. A decline on either provider is final and never
// falls through, or the traveler could be double-charged.
type Gateway struct {
	primary         payment.Provider
	secondary       payment.Provider
	breakers        *breaker.Manager
	fallbackEnabled bool
}

// New creates a payment gateway
func New(primary, secondary payment.Provider, breakers *breaker.Manager, fallbackEnabled bool) *Gateway {
	if breakers == nil {
		breakers = breaker.DefaultManager
	}
	return &Gateway{
		primary:         primary,
		secondary:       secondary,
		breakers:        breakers,
		fallbackEnabled: fallbackEnabled,
	}
}

// Charge attempts the charge on the primary provider, falling back to the
// secondary only for unavailability.
func (g *Gateway) Charge(ctx context.Context, req *payment.ChargeRequest) (*payment.IntentResult, error) {
	result, err := g.attempt(ctx, g.primary, req)
	if err == nil {
		return result, nil
	}

	if !g.canFallback(err) {
		return nil, err
	}

	log.Warnf("Primary provider unavailable, falling back: %v", err)

	result, fallbackErr := g.attempt(ctx, g.secondary, req)
	if fallbackErr != nil {
		return nil, fmt.Errorf("all providers unavailable: primary: %w, secondary: %v", err, fallbackErr)
	}
	return result, nil
}

// Refund refunds a captured intent on the provider that charged it. Refunds
// never fall back, a provider can only refund its own charge.
func (g *Gateway) Refund(ctx context.Context, providerName string, req *payment.RefundRequest) error {
	provider, err := g.providerByName(providerName)
	if err != nil {
		return err
	}

	scoped := *req
	scoped.IdempotencyKey = scopeKey(req.IdempotencyKey, provider)

	return g.breakers.Execute(ctx, provider.Name(), func() error {
		return provider.Refund(ctx, &scoped)
	})
}

// ProviderState reports the breaker state for a provider
func (g *Gateway) ProviderState(providerName string) breaker.State {
	return g.breakers.State(providerName)
}

func (g *Gateway) attempt(ctx context.Context, provider payment.Provider, req *payment.ChargeRequest) (*payment.IntentResult, error) {
	scoped := *req
	scoped.IdempotencyKey = scopeKey(req.IdempotencyKey, provider)

	var result *payment.IntentResult
	var attemptErr error

	err := g.breakers.Execute(ctx, provider.Name(), func() error {
		result, attemptErr = provider.CreateIntent(ctx, &scoped)
		if payment.IsUnavailable(attemptErr) {
			return attemptErr
		}
		// Declines resolve the charge and invalid requests are our own
		// bug; neither says anything about provider health
		return nil
	})

	if err != nil {
		return nil, err
	}
	if attemptErr != nil {
		return nil, attemptErr
	}
	return result, nil
}

// canFallback decides whether the secondary may see this charge
func (g *Gateway) canFallback(err error) bool {
	if !g.fallbackEnabled || g.secondary == nil {
		return false
	}
	// An open breaker means the primary is known-bad, same as a timeout
	return payment.IsUnavailable(err) || breaker.IsCircuitBreakerError(err)
}

func (g *Gateway) providerByName(name string) (payment.Provider, error) {
	switch {
	case g.primary != nil && g.primary.Name() == name:
		return g.primary, nil
	case g.secondary != nil && g.secondary.Name() == name:
		return g.secondary, nil
	default:
		return nil, fmt.Errorf("unknown payment provider: %s", name)
	}
}

// scopeKey namespaces the idempotency key per provider. The same logical
// charge may legitimately reach both providers once each; sharing one key
// across them would make the secondary replay the primary's request.
func scopeKey(key string, provider payment.Provider) string {
	return key + ":" + provider.Name()
}
