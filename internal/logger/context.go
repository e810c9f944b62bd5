package logger

import "context"

type contextKey int

const (
	requestIDKey contextKey = iota
	answerIDKey
)

// WithRequestID returns a new context with the given request ID stored.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID extracts the request ID from the context.
// Returns an empty string if no request ID is set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithAnswerID tags the context with the answer being processed.
func WithAnswerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, answerIDKey, id)
}

// AnswerID returns the answer id stored by WithAnswerID, or "".
func AnswerID(ctx context.Context) string {
	id, _ := ctx.Value(answerIDKey).(string)
	return id
}
