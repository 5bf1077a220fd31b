package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestExecuteDoesNotRetry(t *testing.T) {
	b := New(Config{Enabled: true}, zerolog.Nop())
	attempts := 0
	errTemp := errors.New("temporary")
	err := b.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errTemp
	})
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected original error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	b := New(Config{
		Enabled:          true,
		MinRequests:      2,
		FailureRatio:     0.5,
		OpenTimeout:      50 * time.Millisecond,
		HalfOpenMaxCalls: 1,
	}, zerolog.Nop())

	errTemp := errors.New("temporary")
	for i := 0; i < 2; i++ {
		err := b.Execute(context.Background(), "problems.insert", func(context.Context) error {
			return errTemp
		})
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := b.Execute(context.Background(), "problems.insert", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	})
	if !errors.Is(err, ErrUnavailable) || !IsOpen(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if b.State("problems.insert") != "open" {
		t.Fatalf("expected open state, got %s", b.State("problems.insert"))
	}
	if b.State("other") != "closed" {
		t.Fatalf("unrelated operations must stay closed")
	}
}

func TestIgnoredErrorsDoNotTrip(t *testing.T) {
	errBadInput := errors.New("bad input")
	b := New(Config{Enabled: true, MinRequests: 1, FailureRatio: 0.1}, zerolog.Nop())
	b.Ignore = func(err error) bool { return errors.Is(err, errBadInput) }
	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), "auth.signin", func(context.Context) error { return errBadInput })
	}
	called := false
	_ = b.Execute(context.Background(), "auth.signin", func(context.Context) error {
		called = true
		return nil
	})
	if !called {
		t.Fatalf("ignored errors must not open the circuit")
	}
}

func TestNilBreakerRunsDirectly(t *testing.T) {
	var b *Breaker
	called := false
	if err := b.Execute(context.Background(), "op", func(context.Context) error {
		called = true
		return nil
	}); err != nil || !called {
		t.Fatalf("expected direct call, got %v %v", called, err)
	}
}
