package llm

import (
	"context"
	"errors"

	"github.com/inceptlabs/inception-engine/engine/domain"
	"github.com/inceptlabs/inception-engine/pkg/resilience"
)

// Client bundles both collaborator capabilities behind one backend.
type Client interface {
	Understander
	Summarizer
}

// Guarded wraps a collaborator with a circuit breaker and rate limiter so a
// dead or slow model backend degrades the pipeline instead of stalling it.
// Rejections surface as collaborator_unavailable, which every caller already
// treats as a fallback trigger.
type Guarded struct {
	inner   Client
	breaker *resilience.Breaker
	limiter *resilience.Limiter
}

// Guard wraps client. Nil breaker or limiter disables that protection.
func Guard(client Client, breaker *resilience.Breaker, limiter *resilience.Limiter) *Guarded {
	return &Guarded{inner: client, breaker: breaker, limiter: limiter}
}

func (g *Guarded) Understand(ctx context.Context, text string) (Understanding, error) {
	var u Understanding
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		u, err = g.inner.Understand(ctx, text)
		return err
	})
	return u, err
}

func (g *Guarded) Summarize(ctx context.Context, question string, label domain.DecisionLabel, clauses []string) (string, error) {
	var s string
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		s, err = g.inner.Summarize(ctx, question, label, clauses)
		return err
	})
	return s, err
}

func (g *Guarded) call(ctx context.Context, f func(context.Context) error) error {
	guarded := f
	if g.breaker != nil {
		inner := guarded
		guarded = func(ctx context.Context) error { return g.breaker.Do(ctx, inner) }
	}
	if g.limiter != nil {
		inner := guarded
		guarded = func(ctx context.Context) error { return g.limiter.Do(ctx, inner) }
	}

	err := guarded(ctx)
	if errors.Is(err, resilience.ErrUnavailable) || errors.Is(err, resilience.ErrThrottled) {
		return domain.E(domain.KindCollaborator, "language model backend", err)
	}
	return err
}
