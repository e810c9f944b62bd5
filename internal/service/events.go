package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/answerdesk/internal/port/broadcast"
	"github.com/Strob0t/answerdesk/internal/port/messagequeue"
)

// EventEmitter fans workflow events out to the message queue and to the
// dashboard broadcaster. Both sinks are optional and failures are logged,
// never returned: events are observability, not part of the workflow.
type EventEmitter struct {
	queue messagequeue.Queue
	hub   broadcast.Broadcaster
}

// NewEventEmitter creates an emitter. Either argument may be nil.
func NewEventEmitter(queue messagequeue.Queue, hub broadcast.Broadcaster) *EventEmitter {
	return &EventEmitter{queue: queue, hub: hub}
}

// Emit publishes queuePayload on subject and broadcasts hubPayload as eventType.
// A nil payload skips that sink.
func (e *EventEmitter) Emit(ctx context.Context, subject string, queuePayload any, eventType string, hubPayload any) {
	if e == nil {
		return
	}
	if e.queue != nil && queuePayload != nil {
		data, err := json.Marshal(queuePayload)
		if err != nil {
			slog.Error("marshal event", "subject", subject, "error", err)
		} else if err := e.queue.Publish(ctx, subject, data); err != nil {
			slog.Warn("publish event", "subject", subject, "error", err)
		}
	}
	if e.hub != nil && hubPayload != nil {
		e.hub.BroadcastEvent(ctx, eventType, hubPayload)
	}
}
