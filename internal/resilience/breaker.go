// Package resilience provides reliability patterns for external channel calls.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the externally visible breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Option configures a Breaker.
type Option func(*Breaker)

// WithOnStateChange registers a callback invoked after each transition.
// It runs without the breaker lock held.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

// WithFailureFilter makes errors for which counts returns false pass through
// without being recorded as failures (for example 4xx responses).
func WithFailureFilter(counts func(error) bool) Option {
	return func(b *Breaker) { b.counts = counts }
}

// Breaker tracks consecutive failures of one external dependency. After
// maxFailures in a row it rejects calls for timeout, then admits a single
// probe; the probe's result closes or reopens the circuit.
type Breaker struct {
	name        string
	maxFailures int
	timeout     time.Duration
	onChange    func(name string, from, to State)
	counts      func(error) bool
	now         func() time.Time // for testing

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a named circuit breaker.
func NewBreaker(name string, maxFailures int, timeout time.Duration, opts ...Option) *Breaker {
	b := &Breaker{
		name:        name,
		maxFailures: max(maxFailures, 1),
		timeout:     timeout,
		now:         time.Now,
		state:       StateClosed,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Name returns the dependency name given at construction.
func (b *Breaker) Name() string { return b.name }

// State returns the current state. An open breaker whose timeout has elapsed
// still reports open until the next call probes it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn if the circuit admits it.
// Returns ErrCircuitOpen if the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	return b.ExecuteContext(context.Background(), func(context.Context) error { return fn() })
}

// ExecuteContext is Execute for context-aware calls. A failure caused by the
// caller's own cancellation is returned but not counted.
func (b *Breaker) ExecuteContext(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.admit() {
		return ErrCircuitOpen
	}

	err := fn(ctx)
	switch {
	case err == nil:
		b.record(true)
	case ctx.Err() != nil, b.counts != nil && !b.counts(err):
		b.release()
	default:
		b.record(false)
	}
	return err
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	from := b.state
	allowed := false
	switch b.state {
	case StateClosed:
		allowed = true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.timeout {
			b.state = StateHalfOpen
			b.probing = true
			allowed = true
		}
	case StateHalfOpen:
		if !b.probing {
			b.probing = true
			allowed = true
		}
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return allowed
}

// release frees a half-open probe slot without judging the dependency.
func (b *Breaker) release() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	from := b.state
	b.probing = false
	if ok {
		b.failures = 0
		b.state = StateClosed
	} else {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}
