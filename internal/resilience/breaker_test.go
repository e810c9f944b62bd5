package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("service unavailable")

func failN(b *Breaker, n int) {
	for range n {
		_ = b.Execute(func() error { return errTest })
	}
}

func TestClosedStateAllowsCalls(t *testing.T) {
	b := NewBreaker("slack", 3, time.Second)
	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !called {
		t.Fatal("expected fn to be called")
	}
	if b.Name() != "slack" {
		t.Errorf("expected name slack, got %s", b.Name())
	}
}

func TestOpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker("slack", 3, time.Second)
	failN(b, 3)

	err := b.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}
}

func TestTransitionsToHalfOpenAfterTimeout(t *testing.T) {
	now := time.Now()
	b := NewBreaker("github", 2, time.Second)
	b.now = func() time.Time { return now }
	failN(b, 2)

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}

	now = now.Add(2 * time.Second)

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error in half-open, got %v", err)
	}
	if !called {
		t.Fatal("expected fn to be called in half-open")
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after probe success, got %s", b.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker("github", 2, time.Second)
	b.now = func() time.Time { return now }
	failN(b, 2)

	now = now.Add(2 * time.Second)
	_ = b.Execute(func() error { return errTest })

	if b.State() != StateOpen {
		t.Fatalf("expected open after half-open failure, got %s", b.State())
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after reopen, got %v", err)
	}
}

func TestHalfOpenAdmitsSingleProbe(t *testing.T) {
	now := time.Now()
	b := NewBreaker("email", 1, time.Second)
	b.now = func() time.Time { return now }
	failN(b, 1)
	now = now.Add(2 * time.Second)

	entered := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Execute(func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("second call during probe: expected ErrCircuitOpen, got %v", err)
	}
	close(release)
	wg.Wait()

	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("slack", 3, time.Second)
	failN(b, 2)
	_ = b.Execute(func() error { return nil })
	failN(b, 2)

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("expected call through closed breaker, err=%v called=%v", err, called)
	}
}

func TestFailureFilterIgnoresPermanentErrors(t *testing.T) {
	errBadRequest := errors.New("400")
	b := NewBreaker("discord", 1, time.Second,
		WithFailureFilter(func(err error) bool { return !errors.Is(err, errBadRequest) }))

	for range 3 {
		if err := b.Execute(func() error { return errBadRequest }); !errors.Is(err, errBadRequest) {
			t.Fatalf("expected passthrough error, got %v", err)
		}
	}
	if b.State() != StateClosed {
		t.Fatalf("filtered errors must not trip the breaker, got %s", b.State())
	}
}

func TestCallerCancellationNotCounted(t *testing.T) {
	b := NewBreaker("litellm", 1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	err := b.ExecuteContext(ctx, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("cancellation must not trip the breaker, got %s", b.State())
	}

	if err := b.ExecuteContext(ctx, func(context.Context) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected early context error, got %v", err)
	}
}

func TestOnStateChange(t *testing.T) {
	now := time.Now()
	var transitions []string
	b := NewBreaker("slack", 1, time.Second, WithOnStateChange(func(name string, from, to State) {
		transitions = append(transitions, name+":"+string(from)+"->"+string(to))
	}))
	b.now = func() time.Time { return now }

	failN(b, 1)
	now = now.Add(2 * time.Second)
	_ = b.Execute(func() error { return nil })

	want := []string{"slack:closed->open", "slack:open->half_open", "slack:half_open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}
