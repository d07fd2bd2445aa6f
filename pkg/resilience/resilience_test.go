package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inceptlabs/inception-engine/pkg/fn"
)

var errBackend = errors.New("backend down")

func failing(ctx context.Context) error { return errBackend }
func healthy(ctx context.Context) error { return nil }

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(BreakerOpts{Failures: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Do(ctx, failing); !errors.Is(err, errBackend) {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if b.State() != Open {
		t.Fatalf("state = %s, want open", b.State())
	}
	if err := b.Do(ctx, healthy); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("open breaker let a call through: %v", err)
	}
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker(BreakerOpts{Failures: 3, Cooldown: time.Minute})
	ctx := context.Background()

	_ = b.Do(ctx, failing)
	_ = b.Do(ctx, failing)
	_ = b.Do(ctx, healthy)
	_ = b.Do(ctx, failing)
	_ = b.Do(ctx, failing)

	if b.State() != Closed {
		t.Fatalf("state = %s, want closed", b.State())
	}
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	b := NewBreaker(BreakerOpts{Failures: 1, Cooldown: 10 * time.Second})
	now := time.Now()
	b.clock = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Do(ctx, failing)
	if b.State() != Open {
		t.Fatalf("state = %s, want open", b.State())
	}

	now = now.Add(11 * time.Second)
	if b.State() != Probing {
		t.Fatalf("state = %s, want probing", b.State())
	}

	// A successful probe closes the breaker.
	if err := b.Do(ctx, healthy); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != Closed {
		t.Fatalf("state = %s, want closed", b.State())
	}
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b := NewBreaker(BreakerOpts{Failures: 1, Cooldown: 10 * time.Second})
	now := time.Now()
	b.clock = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Do(ctx, failing)
	now = now.Add(11 * time.Second)

	if err := b.Do(ctx, failing); !errors.Is(err, errBackend) {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != Open {
		t.Fatalf("state = %s, want open after failed probe", b.State())
	}
}

func TestBreakerCancellationIsNotAFailure(t *testing.T) {
	b := NewBreaker(BreakerOpts{Failures: 1, Cooldown: time.Minute})
	ctx := context.Background()

	_ = b.Do(ctx, func(context.Context) error { return context.Canceled })
	if b.State() != Closed {
		t.Fatalf("state = %s, cancellation must not trip the breaker", b.State())
	}
}

func TestBreakerStagePropagatesUnavailable(t *testing.T) {
	b := NewBreaker(BreakerOpts{Failures: 1, Cooldown: time.Minute})
	stage := BreakerStage(b, func(_ context.Context, s string) fn.Result[string] {
		return fn.Err[string](errBackend)
	})
	ctx := context.Background()

	if _, err := stage(ctx, "x").Unwrap(); !errors.Is(err, errBackend) {
		t.Fatalf("first call: %v", err)
	}
	if _, err := stage(ctx, "x").Unwrap(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("tripped call: %v", err)
	}
}

func TestLimiterDo(t *testing.T) {
	l := NewLimiter(1, 2)
	ctx := context.Background()

	calls := 0
	f := func(context.Context) error { calls++; return nil }

	if err := l.Do(ctx, f); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := l.Do(ctx, f); err != nil {
		t.Fatalf("second: %v", err)
	}
	if err := l.Do(ctx, f); !errors.Is(err, ErrThrottled) {
		t.Fatalf("burst exhausted, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestLimitStageHonorsCancellation(t *testing.T) {
	l := NewLimiter(0.001, 1)
	stage := LimitStage(l, func(_ context.Context, s string) fn.Result[string] {
		return fn.Ok(s)
	})

	// Drain the bucket.
	if _, err := stage(context.Background(), "a").Unwrap(); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := stage(ctx, "b").Unwrap(); err == nil {
		t.Fatal("expected context error while waiting for a token")
	}
}
