package slack

import (
	"context"
	"fmt"

	"github.com/Strob0t/answerdesk/internal/domain/answer"
	"github.com/Strob0t/answerdesk/internal/port/publisher"
)

// Publisher replies in the Slack thread a question came from.
type Publisher struct {
	client *Client
}

// NewPublisher creates a Slack thread publisher.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Source implements publisher.Publisher.
func (p *Publisher) Source() answer.Source { return answer.SourceSlack }

// Publish implements publisher.Publisher.
func (p *Publisher) Publish(ctx context.Context, pub publisher.Publication) error {
	if !p.client.Configured() {
		return publisher.ErrNotConfigured
	}
	channel, ts, err := SplitOriginRef(pub.Context.OriginRef)
	if err != nil {
		return err
	}
	if _, err := p.client.PostMessage(ctx, &Message{Channel: channel, ThreadTS: ts, Text: pub.Text}); err != nil {
		return fmt.Errorf("slack reply %s: %w", pub.Context.OriginRef, err)
	}
	return nil
}
