package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "answerdesk"

// Metrics holds all answerdesk metric instruments.
type Metrics struct {
	QuestionsReceived  metric.Int64Counter
	QuestionsMatched   metric.Int64Counter
	MatchConfidence    metric.Float64Histogram
	AnswersDispatched  metric.Int64Counter
	CapabilityFailures metric.Int64Counter
	ApprovalsPending   metric.Int64UpDownCounter
	ApprovalsResolved  metric.Int64Counter
	ApprovalLatency    metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.QuestionsReceived, err = meter.Int64Counter("answerdesk.questions.received",
		metric.WithDescription("Number of questions received"))
	if err != nil {
		return nil, err
	}

	m.QuestionsMatched, err = meter.Int64Counter("answerdesk.questions.matched",
		metric.WithDescription("Number of questions that matched a knowledge entry"))
	if err != nil {
		return nil, err
	}

	m.MatchConfidence, err = meter.Float64Histogram("answerdesk.match.confidence",
		metric.WithDescription("Best match confidence per question"),
		metric.WithExplicitBucketBoundaries(0, 0.2, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 1))
	if err != nil {
		return nil, err
	}

	m.AnswersDispatched, err = meter.Int64Counter("answerdesk.answers.dispatched",
		metric.WithDescription("Number of answers dispatched, by outcome"))
	if err != nil {
		return nil, err
	}

	m.CapabilityFailures, err = meter.Int64Counter("answerdesk.capability.failures",
		metric.WithDescription("Failed calls to external capabilities"))
	if err != nil {
		return nil, err
	}

	m.ApprovalsPending, err = meter.Int64UpDownCounter("answerdesk.approvals.pending",
		metric.WithDescription("Answers currently awaiting a decision"))
	if err != nil {
		return nil, err
	}

	m.ApprovalsResolved, err = meter.Int64Counter("answerdesk.approvals.resolved",
		metric.WithDescription("Number of approval decisions, by resulting state"))
	if err != nil {
		return nil, err
	}

	m.ApprovalLatency, err = meter.Float64Histogram("answerdesk.approval.latency_seconds",
		metric.WithDescription("Time from answer creation to decision"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
