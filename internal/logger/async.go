package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer allows flushing and stopping the async handler.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// asyncState is shared between an AsyncHandler and its derived handlers.
type asyncState struct {
	ch      chan queued
	wg      sync.WaitGroup
	mu      sync.RWMutex // guards closed against sends on a closed channel
	closed  bool
	dropped atomic.Int64
}

// AsyncHandler wraps an slog.Handler with a buffered channel and worker pool.
// Records are dropped, not blocked on, when the buffer is full.
type AsyncHandler struct {
	inner slog.Handler
	state *asyncState
}

// NewAsyncHandler creates an AsyncHandler with the given channel capacity and worker count.
func NewAsyncHandler(inner slog.Handler, chanSize, workers int) *AsyncHandler {
	st := &asyncState{ch: make(chan queued, chanSize)}
	h := &AsyncHandler{inner: inner, state: st}
	for range max(workers, 1) {
		st.wg.Add(1)
		go h.drain()
	}
	return h
}

// queued pairs a record with the handler that owns its attrs and groups.
type queued struct {
	inner slog.Handler
	rec   slog.Record
}

func (h *AsyncHandler) drain() {
	defer h.state.wg.Done()
	for q := range h.state.ch {
		_ = q.inner.Handle(context.Background(), q.rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record. Context values are resolved before the record
// leaves the caller's goroutine.
func (h *AsyncHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	rec = rec.Clone()
	if id := RequestID(ctx); id != "" {
		rec.AddAttrs(slog.String("request_id", id))
	}
	if id := AnswerID(ctx); id != "" {
		rec.AddAttrs(slog.String("answer_id", id))
	}

	st := h.state
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.closed {
		st.dropped.Add(1)
		return nil
	}
	select {
	case st.ch <- queued{inner: h.inner, rec: rec}:
	default:
		st.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a handler sharing the same queue with a derived inner handler.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), state: h.state}
}

// WithGroup returns a handler sharing the same queue with a derived inner handler.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), state: h.state}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.state.dropped.Load()
}

// Close stops accepting records and waits for the workers to drain the
// buffer. It is safe to call more than once.
func (h *AsyncHandler) Close() {
	st := h.state
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return
	}
	st.closed = true
	close(st.ch)
	st.mu.Unlock()
	st.wg.Wait()
}
