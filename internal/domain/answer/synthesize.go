package answer

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/answerdesk/internal/domain"
	"github.com/Strob0t/answerdesk/internal/domain/knowledge"
)

const actionPrefix = "how do i "

// ActionPhrase derives the phrase an answer greeting refers to: the entry's
// question, lower-cased, with a leading "how do i " removed.
func ActionPhrase(questionText string) string {
	return strings.TrimPrefix(strings.ToLower(questionText), actionPrefix)
}

// Compose builds the deterministic answer text for an entry.
func Compose(entry *knowledge.Entry, rc RequestContext) string {
	return fmt.Sprintf("Hi @%s! Here's how to %s\n\n%s",
		rc.RequesterID, ActionPhrase(entry.QuestionText), entry.AnswerText)
}

// Synthesize builds an answer payload for a matched entry. Every call gets a
// fresh id and creation time. A nil entry means the caller asked for
// synthesis without a match, which is a contract violation.
func Synthesize(question string, entry *knowledge.Entry, rc RequestContext, now time.Time) (Payload, error) {
	if entry == nil {
		return Payload{}, fmt.Errorf("synthesize without matched entry: %w", domain.ErrPrecondition)
	}
	return Payload{
		ID:               uuid.NewString(),
		OriginalQuestion: question,
		MatchedEntryID:   entry.ID,
		Text:             Compose(entry, rc),
		Context:          rc,
		CreatedAt:        now.UTC(),
	}, nil
}
