package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	cfotel "github.com/Strob0t/answerdesk/internal/adapter/otel"
	"github.com/Strob0t/answerdesk/internal/domain/answer"
	"github.com/Strob0t/answerdesk/internal/port/notifier"
)

// maxParallelSends bounds concurrent notifier calls for one answer.
const maxParallelSends = 4

// Delivery is the result of sending one notification to one target.
type Delivery struct {
	Target    string `json:"target"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`

	err error
}

// NotificationService sends approval requests and notifications to
// "provider:address" targets through the notifier registered for the provider.
type NotificationService struct {
	notifiers map[string]notifier.Notifier
	metrics   *cfotel.Metrics
}

// NewNotificationService creates a NotificationService. Notifiers are keyed
// by Name(); a later notifier with the same name replaces an earlier one.
func NewNotificationService(metrics *cfotel.Metrics, notifiers ...notifier.Notifier) *NotificationService {
	m := make(map[string]notifier.Notifier, len(notifiers))
	for _, n := range notifiers {
		m[n.Name()] = n
	}
	return &NotificationService{notifiers: m, metrics: metrics}
}

// Deliver sends one notification of the given kind per target. Every target
// is attempted; the returned deliveries keep the order of targets and the
// error joins all failures.
func (s *NotificationService) Deliver(ctx context.Context, kind notifier.Kind, targets []string, p *answer.Payload) ([]Delivery, error) {
	out := make([]Delivery, len(targets))

	var g errgroup.Group
	g.SetLimit(maxParallelSends)
	for i, raw := range targets {
		g.Go(func() error {
			out[i] = s.send(ctx, kind, raw, p)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for i := range out {
		if out[i].err != nil {
			errs = append(errs, out[i].err)
		}
	}
	return out, errors.Join(errs...)
}

// NotifierCount returns the number of registered notifiers.
func (s *NotificationService) NotifierCount() int {
	return len(s.notifiers)
}

func (s *NotificationService) send(ctx context.Context, kind notifier.Kind, raw string, p *answer.Payload) Delivery {
	d := Delivery{Target: raw}

	target, err := notifier.ParseTarget(raw)
	if err == nil {
		n, ok := s.notifiers[target.Provider]
		if !ok {
			err = fmt.Errorf("target %s: %w", raw, notifier.ErrNotConfigured)
		} else {
			err = n.Send(ctx, notifier.Notification{
				Kind:     kind,
				Target:   target,
				AnswerID: p.ID,
				Question: p.OriginalQuestion,
				Text:     p.Text,
				Context:  p.Context,
			})
		}
	}

	if err != nil {
		slog.Warn("notification send failed",
			"answer_id", p.ID,
			"target", raw,
			"kind", kind,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.CapabilityFailures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("capability", string(CapabilityNotify)),
				attribute.String("target", target.Provider),
			))
		}
		d.err = fmt.Errorf("%s: %w", raw, err)
		d.Error = err.Error()
		return d
	}

	slog.Debug("notification sent", "answer_id", p.ID, "target", raw, "kind", kind)
	d.Delivered = true
	return d
}
