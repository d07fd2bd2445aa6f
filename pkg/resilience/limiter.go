package resilience

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/inceptlabs/inception-engine/pkg/fn"
)

// ErrThrottled is returned by non-blocking limiter paths when no token is
// available.
var ErrThrottled = errors.New("collaborator rate limit exceeded")

// Limiter is a token bucket over x/time/rate with pipeline helpers.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter allows perSecond sustained calls with the given burst.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow reports whether a call may proceed now.
func (l *Limiter) Allow() bool { return l.rl.Allow() }

// Wait blocks until a token is available or ctx ends.
func (l *Limiter) Wait(ctx context.Context) error { return l.rl.Wait(ctx) }

// Do runs f if a token is available, otherwise returns ErrThrottled.
func (l *Limiter) Do(ctx context.Context, f func(context.Context) error) error {
	if !l.Allow() {
		return ErrThrottled
	}
	return f(ctx)
}

// LimitStage wraps a stage so each invocation waits for a token. Blocking
// is the right default for ingestion, where backpressure beats data loss.
func LimitStage[In, Out any](l *Limiter, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return func(ctx context.Context, in In) fn.Result[Out] {
		if err := l.Wait(ctx); err != nil {
			return fn.Err[Out](err)
		}
		return stage(ctx, in)
	}
}
