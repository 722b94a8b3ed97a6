package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errProviderDown = errors.New("provider unreachable")

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(999).String())
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("stripe", Config{})

	assert.Equal(t, "stripe", cb.name)
	assert.Equal(t, uint32(1), cb.maxRequests)
	assert.Equal(t, time.Minute, cb.interval)
	assert.Equal(t, time.Minute, cb.timeout)
	assert.Equal(t, StateClosed, cb.State())
	assert.NotNil(t, cb.readyToTrip)
}

func TestExecute_SuccessStaysClosed(t *testing.T) {
	cb := NewCircuitBreaker("stripe", Config{})
	ctx := context.Background()

	err := cb.Execute(ctx, func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())

	counts := cb.Counts()
	assert.Equal(t, uint32(1), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(0), counts.TotalFailures)
}

func TestExecute_FailureRatioOpensBreaker(t *testing.T) {
	cb := NewCircuitBreaker("stripe", Config{
		ReadyToTrip: func(counts Counts) bool {
			return counts.Requests >= 3 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := cb.Execute(ctx, func() error { return errProviderDown })
		assert.Equal(t, errProviderDown, err)
	}

	assert.Equal(t, StateOpen, cb.State())
}

func TestExecute_OpenBreakerShortCircuits(t *testing.T) {
	cb := NewCircuitBreaker("stripe", Config{
		ReadyToTrip: func(counts Counts) bool { return counts.TotalFailures >= 1 },
	})
	ctx := context.Background()

	err := cb.Execute(ctx, func() error { return errProviderDown })
	assert.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())

	// The provider is never contacted while the breaker is open
	called := false
	err = cb.Execute(ctx, func() error {
		called = true
		return nil
	})
	assert.Equal(t, ErrOpenState, err)
	assert.True(t, IsCircuitBreakerError(err))
	assert.False(t, called)
}

func TestExecute_ProbeAfterTimeoutClosesBreaker(t *testing.T) {
	cb := NewCircuitBreaker("stripe", Config{
		Timeout:     10 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool { return counts.TotalFailures >= 1 },
	})
	ctx := context.Background()

	err := cb.Execute(ctx, func() error { return errProviderDown })
	assert.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(15 * time.Millisecond)

	// The first probe after the timeout succeeds and closes the breaker
	err = cb.Execute(ctx, func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_PanicCountsAsFailure(t *testing.T) {
	cb := NewCircuitBreaker("stripe", Config{})
	ctx := context.Background()

	assert.Panics(t, func() {
		cb.Execute(ctx, func() error {
			panic("provider client blew up")
		})
	})

	counts := cb.Counts()
	assert.Equal(t, uint32(1), counts.Requests)
	assert.Equal(t, uint32(0), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.TotalFailures)
}

func TestHalfOpen_ProbeBudget(t *testing.T) {
	cb := NewCircuitBreaker("stripe", Config{
		MaxRequests: 2,
		Timeout:     10 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool { return counts.TotalFailures >= 1 },
	})
	ctx := context.Background()

	err := cb.Execute(ctx, func() error { return errProviderDown })
	assert.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(15 * time.Millisecond)

	// Two successful probes are needed before the breaker closes
	err = cb.Execute(ctx, func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, StateHalfOpen, cb.State())

	err = cb.Execute(ctx, func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpen_ExcessProbesRejected(t *testing.T) {
	cb := NewCircuitBreaker("stripe", Config{
		MaxRequests: 1,
		Timeout:     10 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool { return counts.TotalFailures >= 1 },
	})
	ctx := context.Background()

	err := cb.Execute(ctx, func() error { return errProviderDown })
	assert.Error(t, err)

	cb.mu.Lock()
	cb.state = StateHalfOpen
	cb.counts.Requests = 1 // probe budget already spent
	cb.mu.Unlock()

	err = cb.Execute(ctx, func() error { return nil })
	assert.Equal(t, ErrTooManyRequests, err)
	assert.True(t, IsCircuitBreakerError(err))
}

func TestReset(t *testing.T) {
	cb := NewCircuitBreaker("stripe", Config{
		ReadyToTrip: func(counts Counts) bool { return counts.TotalFailures >= 1 },
	})
	ctx := context.Background()

	err := cb.Execute(ctx, func() error { return errProviderDown })
	assert.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Counts{}, cb.Counts())
}

func TestIsCircuitBreakerError(t *testing.T) {
	assert.True(t, IsCircuitBreakerError(ErrOpenState))
	assert.True(t, IsCircuitBreakerError(ErrTooManyRequests))
	assert.False(t, IsCircuitBreakerError(errProviderDown))
}

func TestManager(t *testing.T) {
	t.Run("OneBreakerPerProvider", func(t *testing.T) {
		manager := NewManager(Config{MaxRequests: 5, Interval: 30 * time.Second})

		stripe := manager.GetBreaker("stripe")
		again := manager.GetBreaker("stripe")
		adyen := manager.GetBreaker("adyen")

		assert.Same(t, stripe, again)
		assert.NotSame(t, stripe, adyen)
		assert.Equal(t, uint32(5), stripe.maxRequests)
	})

	t.Run("ProvidersTripIndependently", func(t *testing.T) {
		manager := NewManager(Config{
			ReadyToTrip: func(counts Counts) bool { return counts.TotalFailures >= 1 },
		})
		ctx := context.Background()

		err := manager.Execute(ctx, "stripe", func() error { return errProviderDown })
		assert.Error(t, err)

		assert.Equal(t, StateOpen, manager.State("stripe"))
		assert.Equal(t, StateClosed, manager.State("adyen"))
	})
}
