package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/answerdesk/internal/adapter/otel"
	"github.com/Strob0t/answerdesk/internal/adapter/ws"
	"github.com/Strob0t/answerdesk/internal/domain"
	"github.com/Strob0t/answerdesk/internal/domain/answer"
	"github.com/Strob0t/answerdesk/internal/domain/knowledge"
	"github.com/Strob0t/answerdesk/internal/domain/match"
	"github.com/Strob0t/answerdesk/internal/domain/workflow"
	"github.com/Strob0t/answerdesk/internal/logger"
	kbport "github.com/Strob0t/answerdesk/internal/port/knowledge"
	"github.com/Strob0t/answerdesk/internal/port/messagequeue"
)

// AskResult is the result of a question that matched.
type AskResult struct {
	Answer  answer.Payload `json:"answer"`
	Match   match.Result   `json:"match"`
	Outcome Outcome        `json:"outcome"`
}

// AnswerService runs the question pipeline: snapshot, match, synthesize, dispatch.
type AnswerService struct {
	kb         kbport.Source
	matcher    *match.Matcher
	synth      *Synthesizer
	dispatcher *Dispatcher
	settings   workflow.Settings
	events     *EventEmitter
	metrics    *cfotel.Metrics
}

// NewAnswerService creates an AnswerService. settings must have been validated.
func NewAnswerService(
	kb kbport.Source,
	matcher *match.Matcher,
	synth *Synthesizer,
	dispatcher *Dispatcher,
	settings workflow.Settings,
	events *EventEmitter,
	metrics *cfotel.Metrics,
) *AnswerService {
	return &AnswerService{
		kb:         kb,
		matcher:    matcher,
		synth:      synth,
		dispatcher: dispatcher,
		settings:   settings,
		events:     events,
		metrics:    metrics,
	}
}

// Settings returns the workflow settings in effect.
func (s *AnswerService) Settings() workflow.Settings {
	return s.settings
}

// Match scores question against the current snapshot without synthesizing
// or dispatching anything.
func (s *AnswerService) Match(ctx context.Context, question string) (match.Result, error) {
	entries, err := s.kb.Snapshot(ctx)
	if err != nil {
		return match.Result{}, fmt.Errorf("knowledge snapshot: %w", err)
	}
	return s.matcher.Match(question, entries, s.settings.MatchThreshold), nil
}

// Ask answers a question. It returns (nil, nil) when nothing in the
// knowledge base matches. When dispatch partly failed, the result is
// returned together with the error.
func (s *AnswerService) Ask(ctx context.Context, question string, rc answer.RequestContext) (*AskResult, error) {
	if err := rc.Validate(); err != nil {
		return nil, fmt.Errorf("request context: %v: %w", err, domain.ErrValidation)
	}

	ctx, span := cfotel.StartAskSpan(ctx, string(rc.Source), rc.OriginRef)
	defer span.End()

	if s.metrics != nil {
		s.metrics.QuestionsReceived.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", string(rc.Source))))
	}

	entries, err := s.kb.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("knowledge snapshot: %w", err)
	}

	res := s.matcher.Match(question, entries, s.settings.MatchThreshold)
	if s.metrics != nil {
		s.metrics.MatchConfidence.Record(ctx, res.Confidence)
	}
	if !res.Matched {
		slog.InfoContext(ctx, "no match",
			"source", rc.Source,
			"origin_ref", rc.OriginRef,
			"confidence", res.Confidence,
			"rationale", res.Rationale,
		)
		return nil, nil
	}

	entry, ok := knowledge.Find(entries, res.EntryID)
	if !ok {
		return nil, fmt.Errorf("matched entry %q not in snapshot: %w", res.EntryID, domain.ErrPrecondition)
	}
	if s.metrics != nil {
		s.metrics.QuestionsMatched.Add(ctx, 1, metric.WithAttributes(
			attribute.String("entry_id", entry.ID)))
	}

	p, err := s.synth.Synthesize(ctx, question, &entry, rc)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithAnswerID(ctx, p.ID)

	slog.InfoContext(ctx, "question matched",
		"entry_id", entry.ID,
		"confidence", res.Confidence,
		"mode", s.settings.ActionMode,
	)
	s.events.Emit(ctx, messagequeue.SubjectQuestionAnswered, messagequeue.QuestionAnsweredPayload{
		AnswerID:    p.ID,
		EntryID:     entry.ID,
		Confidence:  res.Confidence,
		Source:      string(rc.Source),
		OriginRef:   rc.OriginRef,
		RequesterID: rc.RequesterID,
	}, ws.EventAnswerGenerated, ws.AnswerGeneratedEvent{
		AnswerID:   p.ID,
		EntryID:    entry.ID,
		Confidence: res.Confidence,
		Source:     string(rc.Source),
		OriginRef:  rc.OriginRef,
	})

	out, err := s.dispatcher.Dispatch(ctx, s.settings.ActionMode, &p, s.settings.NotifyTargets)
	if err != nil && out.Kind == "" {
		return nil, err
	}
	return &AskResult{Answer: p, Match: res, Outcome: out}, err
}
