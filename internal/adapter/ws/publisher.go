package ws

import (
	"context"
	"time"

	"github.com/Strob0t/answerdesk/internal/domain/answer"
	"github.com/Strob0t/answerdesk/internal/port/publisher"
)

// Publisher delivers answers to api-source questions over the hub. API
// clients listen for answer.delivered and filter on requester_id or answer_id.
type Publisher struct {
	hub *Hub
	now func() time.Time
}

// NewPublisher creates a Publisher broadcasting through hub.
func NewPublisher(hub *Hub) *Publisher {
	return &Publisher{hub: hub, now: time.Now}
}

// Source implements publisher.Publisher.
func (p *Publisher) Source() answer.Source { return answer.SourceAPI }

// Publish implements publisher.Publisher. Delivery is fire-and-forget: a
// client that is not connected will not see the answer here, but can still
// fetch it from the HTTP response of the original request.
func (p *Publisher) Publish(ctx context.Context, pub publisher.Publication) error {
	p.hub.BroadcastEvent(ctx, EventAnswerDelivered, AnswerPublishedEvent{
		AnswerID:    pub.AnswerID,
		Source:      string(pub.Context.Source),
		OriginRef:   pub.Context.OriginRef,
		RequesterID: pub.Context.RequesterID,
		Text:        pub.Text,
		At:          p.now().UTC(),
	})
	return nil
}
