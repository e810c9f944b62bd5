package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/answerdesk/internal/adapter/otel"
	"github.com/Strob0t/answerdesk/internal/adapter/ws"
	"github.com/Strob0t/answerdesk/internal/domain"
	"github.com/Strob0t/answerdesk/internal/domain/approval"
	"github.com/Strob0t/answerdesk/internal/logger"
	"github.com/Strob0t/answerdesk/internal/port/audit"
	"github.com/Strob0t/answerdesk/internal/port/messagequeue"
	"github.com/Strob0t/answerdesk/internal/port/publisher"
)

// ApprovalService applies maintainer decisions: it resolves the tracked
// record, archives the decision and publishes approved or edited answers.
type ApprovalService struct {
	tracker *ApprovalTracker
	publish *PublishService
	audit   audit.Store
	events  *EventEmitter
	metrics *cfotel.Metrics
}

// NewApprovalService creates an ApprovalService.
func NewApprovalService(tracker *ApprovalTracker, publish *PublishService, auditStore audit.Store, events *EventEmitter, metrics *cfotel.Metrics) *ApprovalService {
	return &ApprovalService{
		tracker: tracker,
		publish: publish,
		audit:   auditStore,
		events:  events,
		metrics: metrics,
	}
}

// Resolve applies ev. The state transition is final once it succeeds: later
// failures to archive or publish are returned as *CapabilityError together
// with the resolved record, and a failed publish can be retried through
// Republish.
func (s *ApprovalService) Resolve(ctx context.Context, ev approval.DecisionEvent) (approval.Record, error) {
	ctx = logger.WithAnswerID(ctx, ev.AnswerID)
	ctx, span := cfotel.StartResolveSpan(ctx, ev.AnswerID, string(ev.Decision))
	defer span.End()

	ta, err := s.tracker.Resolve(ev)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return approval.Record{}, err
	}
	rec := ta.Record

	latency := rec.DecidedAt.Sub(ta.Answer.CreatedAt)
	slog.InfoContext(ctx, "approval resolved",
		"state", rec.State,
		"decided_by", rec.DecidedBy,
		"response_time", latency,
	)
	if s.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("state", string(rec.State)))
		s.metrics.ApprovalsPending.Add(ctx, -1)
		s.metrics.ApprovalsResolved.Add(ctx, 1, attrs)
		s.metrics.ApprovalLatency.Record(ctx, latency.Seconds(), attrs)
	}

	var errs []error
	if err := s.archive(ctx, ta, latency); err != nil {
		errs = append(errs, err)
	}

	s.events.Emit(ctx, messagequeue.SubjectApprovalResolved, messagequeue.ApprovalResolvedPayload{
		AnswerID:  rec.AnswerID,
		State:     string(rec.State),
		DecidedBy: rec.DecidedBy,
		DecidedAt: *rec.DecidedAt,
	}, ws.EventApprovalResolved, ws.ApprovalResolvedEvent{
		AnswerID:  rec.AnswerID,
		State:     string(rec.State),
		DecidedBy: rec.DecidedBy,
	})

	if rec.State.Publishable() {
		if err := s.publishTracked(ctx, ta); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return rec, err
	}
	return rec, nil
}

// Republish retries publishing an approved or edited answer, or a direct
// answer whose first publish failed. Publishing is idempotent, so retrying an
// answer that already went out is a no-op.
func (s *ApprovalService) Republish(ctx context.Context, answerID string) error {
	ta, err := s.tracker.Get(answerID)
	if errors.Is(err, domain.ErrNotFound) && s.publish.Failed(answerID) {
		// A direct answer that never went through approval.
		return s.publish.Retry(logger.WithAnswerID(ctx, answerID), answerID)
	}
	if err != nil {
		return err
	}
	if !ta.Record.State.Publishable() {
		return fmt.Errorf("answer %s is %s, not publishable: %w", answerID, ta.Record.State, domain.ErrPrecondition)
	}
	return s.publishTracked(logger.WithAnswerID(ctx, answerID), ta)
}

// Get returns the tracked answer for answerID.
func (s *ApprovalService) Get(answerID string) (TrackedAnswer, error) {
	return s.tracker.Get(answerID)
}

// ListPending returns the answers awaiting a decision, oldest first.
func (s *ApprovalService) ListPending() []TrackedAnswer {
	return s.tracker.ListPending()
}

// List returns every tracked answer, oldest first.
func (s *ApprovalService) List() []TrackedAnswer {
	return s.tracker.List()
}

// Audit returns the archived decisions for answerID.
func (s *ApprovalService) Audit(ctx context.Context, answerID string) ([]approval.AuditEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.ListByAnswer(ctx, answerID)
}

// PruneResolved forgets resolved records older than retention.
func (s *ApprovalService) PruneResolved(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)
	return s.tracker.Prune(cutoff) + s.publish.PruneFailed(cutoff)
}

// SubscribeDecisions consumes approvals.decision messages from q and applies
// them. Malformed or conflicting decisions are logged and acknowledged;
// returning an error would only make the queue redeliver them.
func (s *ApprovalService) SubscribeDecisions(ctx context.Context, q messagequeue.Queue) (cancel func(), err error) {
	return q.Subscribe(ctx, messagequeue.SubjectApprovalDecision, func(ctx context.Context, _ string, data []byte) error {
		var msg messagequeue.ApprovalDecisionPayload
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("discarding malformed decision", "error", err)
			return nil
		}
		_, err := s.Resolve(ctx, approval.DecisionEvent{
			AnswerID:   msg.AnswerID,
			Decision:   approval.Decision(msg.Decision),
			DecidedBy:  msg.DecidedBy,
			EditedText: msg.EditedText,
		})
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrExternal):
			slog.Error("decision applied with failures", "answer_id", msg.AnswerID, "error", err)
		default:
			slog.Warn("decision rejected", "answer_id", msg.AnswerID, "error", err)
		}
		return nil
	})
}

func (s *ApprovalService) publishTracked(ctx context.Context, ta TrackedAnswer) error {
	return s.publish.Publish(ctx, publisher.Publication{
		AnswerID: ta.Answer.ID,
		Text:     ta.Record.FinalText,
		Context:  ta.Answer.Context,
	})
}

func (s *ApprovalService) archive(ctx context.Context, ta TrackedAnswer, latency time.Duration) error {
	if s.audit == nil {
		return nil
	}
	e := &approval.AuditEntry{
		AnswerID:       ta.Answer.ID,
		MatchedEntryID: ta.Answer.MatchedEntryID,
		Source:         string(ta.Answer.Context.Source),
		OriginRef:      ta.Answer.Context.OriginRef,
		State:          ta.Record.State,
		FinalText:      ta.Record.FinalText,
		DecidedBy:      ta.Record.DecidedBy,
		ResponseTimeMs: latency.Milliseconds(),
	}
	if err := s.audit.RecordDecision(ctx, e); err != nil {
		slog.ErrorContext(ctx, "archive approval decision", "error", err)
		if s.metrics != nil {
			s.metrics.CapabilityFailures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("capability", string(CapabilityAudit))))
		}
		return &CapabilityError{Capability: CapabilityAudit, AnswerID: ta.Answer.ID, Err: err}
	}
	return nil
}
