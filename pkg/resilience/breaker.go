// Package resilience guards collaborator calls with a circuit breaker and a
// token-bucket limiter. The pipeline treats collaborators as optional, so a
// fast ErrUnavailable here is what lets the fallback paths engage instead of
// every request waiting out a timeout against a dead backend.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/inceptlabs/inception-engine/pkg/fn"
)

// ErrUnavailable is returned without calling the backend while the breaker
// is tripped.
var ErrUnavailable = errors.New("collaborator circuit open")

// State of the breaker.
type State int

const (
	Closed State = iota // calls pass through
	Open                // calls rejected until the cooldown elapses
	Probing             // a limited number of trial calls allowed
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case Probing:
		return "probing"
	}
	return "unknown"
}

// BreakerOpts configures trip and recovery behaviour.
type BreakerOpts struct {
	// Failures is the consecutive-failure count that trips the breaker.
	Failures int
	// Cooldown is how long the breaker rejects calls before probing.
	Cooldown time.Duration
	// Probes is how many trial calls the probing state admits.
	Probes int
}

// DefaultBreakerOpts match a collaborator that recovers within seconds.
var DefaultBreakerOpts = BreakerOpts{
	Failures: 5,
	Cooldown: 15 * time.Second,
	Probes:   1,
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	mu       sync.Mutex
	opts     BreakerOpts
	state    State
	failures int
	tripped  time.Time
	probes   int
	clock    func() time.Time
}

// NewBreaker creates a Breaker, filling zero options with defaults.
func NewBreaker(opts BreakerOpts) *Breaker {
	d := DefaultBreakerOpts
	if opts.Failures <= 0 {
		opts.Failures = d.Failures
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = d.Cooldown
	}
	if opts.Probes <= 0 {
		opts.Probes = d.Probes
	}
	return &Breaker{opts: opts, clock: time.Now}
}

// State reports the breaker state, applying the open→probing transition.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tick()
}

// tick advances open→probing when the cooldown has elapsed. Caller holds mu.
func (b *Breaker) tick() State {
	if b.state == Open && b.clock().Sub(b.tripped) >= b.opts.Cooldown {
		b.state = Probing
		b.probes = 0
	}
	return b.state
}

// admit decides whether a call may proceed. Caller holds mu.
func (b *Breaker) admit() bool {
	switch b.tick() {
	case Open:
		return false
	case Probing:
		if b.probes >= b.opts.Probes {
			return false
		}
		b.probes++
	}
	return true
}

// settle records a call outcome. Caller holds mu.
func (b *Breaker) settle(failed bool) {
	if failed {
		b.failures++
		if b.state == Probing || b.failures >= b.opts.Failures {
			b.state = Open
			b.tripped = b.clock()
			b.failures = 0
			b.probes = 0
		}
		return
	}
	if b.state == Probing {
		b.state = Closed
	}
	b.failures = 0
}

// Do runs f through the breaker. Context cancellation counts as a caller
// decision, not a backend failure, and does not move the failure count.
func (b *Breaker) Do(ctx context.Context, f func(context.Context) error) error {
	b.mu.Lock()
	if !b.admit() {
		b.mu.Unlock()
		return ErrUnavailable
	}
	b.mu.Unlock()

	err := f(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if errors.Is(err, context.Canceled) {
		return err
	}
	b.settle(err != nil)
	return err
}

// BreakerStage wraps a pipeline stage with breaker protection.
func BreakerStage[In, Out any](b *Breaker, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return func(ctx context.Context, in In) fn.Result[Out] {
		var out fn.Result[Out]
		err := b.Do(ctx, func(ctx context.Context) error {
			out = stage(ctx, in)
			_, err := out.Unwrap()
			return err
		})
		if errors.Is(err, ErrUnavailable) {
			return fn.Err[Out](ErrUnavailable)
		}
		return out
	}
}
