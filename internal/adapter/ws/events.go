package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Event type constants for WebSocket messages.
const (
	EventAnswerGenerated   = "answer.generated"
	EventAnswerPublished   = "answer.published"
	EventAnswerDelivered   = "answer.delivered" // api-source answers, addressed by requester_id
	EventAnswerNotified    = "answer.notified"
	EventApprovalRequested = "approval.requested"
	EventApprovalResolved  = "approval.resolved"
)

// AnswerGeneratedEvent is broadcast when a question matched and an answer was synthesized.
type AnswerGeneratedEvent struct {
	AnswerID   string  `json:"answer_id"`
	EntryID    string  `json:"entry_id"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	OriginRef  string  `json:"origin_ref"`
}

// AnswerPublishedEvent is broadcast after an answer was posted to its origin.
// For the api source this event is the delivery itself.
type AnswerPublishedEvent struct {
	AnswerID    string    `json:"answer_id"`
	Source      string    `json:"source"`
	OriginRef   string    `json:"origin_ref"`
	RequesterID string    `json:"requester_id"`
	Text        string    `json:"text"`
	At          time.Time `json:"at"`
}

// AnswerNotifiedEvent is broadcast after notify-only delivery.
type AnswerNotifiedEvent struct {
	AnswerID string   `json:"answer_id"`
	Targets  []string `json:"targets"`
	Failed   []string `json:"failed,omitempty"`
}

// ApprovalRequestedEvent is broadcast when an answer starts waiting for a maintainer.
type ApprovalRequestedEvent struct {
	AnswerID string `json:"answer_id"`
	Question string `json:"question"`
	Text     string `json:"text"`
}

// ApprovalResolvedEvent is broadcast when a decision was applied.
type ApprovalResolvedEvent struct {
	AnswerID  string `json:"answer_id"`
	State     string `json:"state"`
	DecidedBy string `json:"decided_by"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
