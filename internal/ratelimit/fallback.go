package ratelimit

import (
	"context"

	"github.com/Payphone-Digital/account-security/pkg/circuit"
	"github.com/Payphone-Digital/account-security/pkg/logger"
)

// FallbackLimiter uses primary while it is healthy and fails over to
// fallback when primary errors or its breaker is open. Requests are never
// rejected just because the shared store is down.
type FallbackLimiter struct {
	primary  Limiter
	fallback Limiter
	breaker  *circuit.Breaker
}

func NewFallbackLimiter(primary, fallback Limiter, breaker *circuit.Breaker) *FallbackLimiter {
	return &FallbackLimiter{primary: primary, fallback: fallback, breaker: breaker}
}

func (l *FallbackLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	var decision Decision
	err := l.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		decision, err = l.primary.Allow(ctx, key)
		return err
	})
	if err == nil {
		return decision, nil
	}

	logger.WarnWithContext(ctx, "Shared rate limiter unavailable, using in-process counter").
		String("breaker_state", l.breaker.State().String()).
		Err(err).
		Log()

	return l.fallback.Allow(ctx, key)
}
