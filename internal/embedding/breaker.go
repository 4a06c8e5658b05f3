package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Circuit breaker defaults for remote providers.
const (
	breakerMaxFailures uint32        = 5
	breakerTimeout     time.Duration = 30 * time.Second
	breakerInterval    time.Duration = 60 * time.Second
)

// BreakerProvider wraps a Provider with circuit breaker protection.
// When the wrapped provider fails repeatedly, the circuit opens and
// subsequent calls fail fast without reaching the provider, handing
// the gateway straight to its fallback chain.
type BreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker[Vector]
}

// NewBreakerProvider wraps inner with a circuit breaker.
func NewBreakerProvider(inner Provider, logger *slog.Logger) *BreakerProvider {
	cb := gobreaker.NewCircuitBreaker[Vector](gobreaker.Settings{
		Name:        "embed:" + inner.Name(),
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &BreakerProvider{inner: inner, breaker: cb}
}

// Embed routes the call through the circuit breaker.
func (p *BreakerProvider) Embed(ctx context.Context, text string) (Vector, error) {
	vec, err := p.breaker.Execute(func() (Vector, error) {
		return p.inner.Embed(ctx, text)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("provider %q circuit open: %w", p.inner.Name(), err)
		}
		return nil, err
	}
	return vec, nil
}

func (p *BreakerProvider) Name() string { return p.inner.Name() }
func (p *BreakerProvider) Dims() int    { return p.inner.Dims() }

var _ Provider = (*BreakerProvider)(nil)
