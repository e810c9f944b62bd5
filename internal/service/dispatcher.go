package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/answerdesk/internal/adapter/otel"
	"github.com/Strob0t/answerdesk/internal/adapter/ws"
	"github.com/Strob0t/answerdesk/internal/domain/answer"
	"github.com/Strob0t/answerdesk/internal/domain/approval"
	"github.com/Strob0t/answerdesk/internal/domain/workflow"
	"github.com/Strob0t/answerdesk/internal/port/messagequeue"
	"github.com/Strob0t/answerdesk/internal/port/notifier"
	"github.com/Strob0t/answerdesk/internal/port/publisher"
)

// Outcome describes what the dispatcher did with an answer.
type Outcome struct {
	Kind       workflow.OutcomeKind `json:"kind"`
	AnswerID   string               `json:"answer_id"`
	Approval   *approval.Record     `json:"approval,omitempty"`
	Deliveries []Delivery           `json:"deliveries,omitempty"`
}

// Dispatcher routes a generated answer according to the action mode.
type Dispatcher struct {
	publish *PublishService
	tracker *ApprovalTracker
	notify  *NotificationService
	events  *EventEmitter
	metrics *cfotel.Metrics
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(publish *PublishService, tracker *ApprovalTracker, notify *NotificationService, events *EventEmitter, metrics *cfotel.Metrics) *Dispatcher {
	return &Dispatcher{
		publish: publish,
		tracker: tracker,
		notify:  notify,
		events:  events,
		metrics: metrics,
	}
}

// Dispatch applies mode to p. Targets are de-duplicated in first-occurrence
// order. When some notifications fail the outcome is still returned, together
// with a *CapabilityError; a pending record created before the failure stays.
// A failed direct publish yields OutcomePublishFailed with the error.
func (d *Dispatcher) Dispatch(ctx context.Context, mode workflow.ActionMode, p *answer.Payload, targets []string) (Outcome, error) {
	ctx, span := cfotel.StartDispatchSpan(ctx, p.ID, string(mode))
	defer span.End()

	out, err := d.dispatch(ctx, mode, p, workflow.DedupeTargets(targets))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	if out.Kind != "" && d.metrics != nil {
		d.metrics.AnswersDispatched.Add(ctx, 1, metric.WithAttributes(
			attribute.String("mode", string(mode)),
			attribute.String("outcome", string(out.Kind)),
		))
	}
	return out, err
}

func (d *Dispatcher) dispatch(ctx context.Context, mode workflow.ActionMode, p *answer.Payload, targets []string) (Outcome, error) {
	switch mode {
	case workflow.ModeDirectAnswer:
		err := d.publish.Publish(ctx, publisher.Publication{
			AnswerID: p.ID,
			Text:     p.Text,
			Context:  p.Context,
		})
		if err != nil {
			return Outcome{Kind: workflow.OutcomePublishFailed, AnswerID: p.ID}, err
		}
		return Outcome{Kind: workflow.OutcomePublished, AnswerID: p.ID}, nil

	case workflow.ModeApprovalRequired:
		rec, err := d.tracker.Submit(*p)
		if err != nil {
			return Outcome{}, err
		}
		if d.metrics != nil {
			d.metrics.ApprovalsPending.Add(ctx, 1)
		}
		slog.Info("answer awaiting approval", "answer_id", p.ID, "targets", len(targets))

		deliveries, sendErr := d.notify.Deliver(ctx, notifier.KindApprovalRequest, targets, p)
		d.events.Emit(ctx, messagequeue.SubjectApprovalRequest, messagequeue.ApprovalRequestedPayload{
			AnswerID: p.ID,
			EntryID:  p.MatchedEntryID,
			Text:     p.Text,
			Targets:  targets,
		}, ws.EventApprovalRequested, ws.ApprovalRequestedEvent{
			AnswerID: p.ID,
			Question: p.OriginalQuestion,
			Text:     p.Text,
		})

		out := Outcome{Kind: workflow.OutcomePending, AnswerID: p.ID, Approval: &rec, Deliveries: deliveries}
		return out, capabilityErr(CapabilityNotify, p.ID, sendErr)

	case workflow.ModeNotifyOnly:
		deliveries, sendErr := d.notify.Deliver(ctx, notifier.KindNotification, targets, p)
		var failed []string
		for _, dl := range deliveries {
			if !dl.Delivered {
				failed = append(failed, dl.Target)
			}
		}
		d.events.Emit(ctx, messagequeue.SubjectAnswerNotified, messagequeue.AnswerNotifiedPayload{
			AnswerID: p.ID,
			Targets:  targets,
			Failed:   failed,
		}, ws.EventAnswerNotified, ws.AnswerNotifiedEvent{
			AnswerID: p.ID,
			Targets:  targets,
			Failed:   failed,
		})

		out := Outcome{Kind: workflow.OutcomeNotified, AnswerID: p.ID, Deliveries: deliveries}
		return out, capabilityErr(CapabilityNotify, p.ID, sendErr)
	}

	return Outcome{}, fmt.Errorf("dispatch answer %s: %w %q", p.ID, workflow.ErrUnknownActionMode, mode)
}

func capabilityErr(c Capability, answerID string, err error) error {
	if err == nil {
		return nil
	}
	return &CapabilityError{Capability: c, AnswerID: answerID, Err: err}
}
