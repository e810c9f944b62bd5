package github

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/answerdesk/internal/domain/answer"
	"github.com/Strob0t/answerdesk/internal/port/publisher"
)

// Publisher answers on the GitHub issue a question came from.
type Publisher struct {
	client *Client
}

// NewPublisher creates a GitHub comment publisher.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Source implements publisher.Publisher.
func (p *Publisher) Source() answer.Source { return answer.SourceGitHub }

// Publish implements publisher.Publisher.
func (p *Publisher) Publish(ctx context.Context, pub publisher.Publication) error {
	if p.client.token == "" {
		return publisher.ErrNotConfigured
	}
	ref, err := ParseIssueRef(pub.Context.OriginRef)
	if err != nil {
		return err
	}
	id, err := p.client.CreateComment(ctx, ref, pub.Text)
	if err != nil {
		return fmt.Errorf("comment on %s: %w", ref, err)
	}
	slog.Info("github comment posted", "answer_id", pub.AnswerID, "origin_ref", ref.String(), "comment_id", id)
	return nil
}
