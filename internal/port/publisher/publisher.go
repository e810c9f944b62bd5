// Package publisher defines the port for posting answers back to the platform
// a question came from.
package publisher

import (
	"context"
	"errors"

	"github.com/Strob0t/answerdesk/internal/domain/answer"
)

// ErrNotConfigured is returned when a publisher lacks credentials or targets.
var ErrNotConfigured = errors.New("publisher: not configured")

// Publication is the payload handed to a Publisher.
type Publication struct {
	AnswerID string                `json:"answer_id"`
	Text     string                `json:"text"`
	Context  answer.RequestContext `json:"context"`
}

// Publisher posts an answer to one platform. Implementations may be retried
// with the same AnswerID; deduplication across retries is done by the caller.
type Publisher interface {
	// Source returns the request source this publisher serves.
	Source() answer.Source

	// Publish posts the answer.
	Publish(ctx context.Context, pub Publication) error
}
