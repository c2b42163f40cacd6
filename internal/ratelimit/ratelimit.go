// Package ratelimit provides the cooperative token-bucket limiter used
// by the two model-calling stages. Suspends the calling goroutine until
// a token is available; never drops a request.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a thin wrapper over rate.Limiter sized by a requests-per-second budget.
type Limiter struct {
	inner *rate.Limiter
}

// New creates a Limiter allowing rps requests per second, with a burst of 1
// (the model endpoints are called one at a time per acquisition).
func New(rps float64) *Limiter {
	return &Limiter{inner: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Acquire blocks (cooperatively, via ctx) until a token is available or ctx
// is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.inner.Wait(ctx)
}
