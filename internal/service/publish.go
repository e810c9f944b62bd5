package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	cfotel "github.com/Strob0t/answerdesk/internal/adapter/otel"
	"github.com/Strob0t/answerdesk/internal/adapter/ws"
	"github.com/Strob0t/answerdesk/internal/domain"
	"github.com/Strob0t/answerdesk/internal/domain/answer"
	"github.com/Strob0t/answerdesk/internal/port/cache"
	"github.com/Strob0t/answerdesk/internal/port/messagequeue"
	"github.com/Strob0t/answerdesk/internal/port/publisher"
)

const (
	publishedKeyPrefix = "published:"

	// publishTimeout bounds a shared publish call, which runs detached from
	// the callers' cancellation.
	publishTimeout = 30 * time.Second
)

// PublishService routes answers to the publisher for their source. Publishing
// is idempotent per answer id: a successful publish is remembered in the
// cache and concurrent attempts for the same id share one call. Failed
// publications are held by answer id until a retry succeeds or they are
// pruned.
type PublishService struct {
	publishers map[answer.Source]publisher.Publisher
	cache      cache.Cache
	ttl        time.Duration
	group      singleflight.Group
	events     *EventEmitter
	metrics    *cfotel.Metrics
	now        func() time.Time

	mu     sync.Mutex
	failed map[string]failedPublication
}

type failedPublication struct {
	pub publisher.Publication
	at  time.Time
}

// NewPublishService creates a PublishService. c may be nil, which disables
// deduplication across calls that do not overlap in time.
func NewPublishService(c cache.Cache, ttl time.Duration, events *EventEmitter, metrics *cfotel.Metrics, pubs ...publisher.Publisher) *PublishService {
	m := make(map[answer.Source]publisher.Publisher, len(pubs))
	for _, p := range pubs {
		m[p.Source()] = p
	}
	return &PublishService{
		publishers: m,
		cache:      c,
		ttl:        ttl,
		events:     events,
		metrics:    metrics,
		now:        time.Now,
		failed:     make(map[string]failedPublication),
	}
}

// Publish posts pub to its origin unless it was already published. Callers
// publishing the same answer concurrently share one attempt; each caller
// stops waiting when its own ctx ends, without cancelling the attempt.
func (s *PublishService) Publish(ctx context.Context, pub publisher.Publication) error {
	key := publishedKeyPrefix + pub.AnswerID
	ch := s.group.DoChan(key, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		return nil, s.publishOnce(sctx, key, pub)
	})
	select {
	case r := <-ch:
		if r.Shared {
			slog.Debug("publish coalesced", "answer_id", pub.AnswerID)
		}
		return r.Err
	case <-ctx.Done():
		return fmt.Errorf("publish answer %s: %w", pub.AnswerID, ctx.Err())
	}
}

// Retry republishes a publication that failed earlier, under its original
// answer id. It fails with domain.ErrNotFound when nothing is held for
// answerID.
func (s *PublishService) Retry(ctx context.Context, answerID string) error {
	s.mu.Lock()
	f, ok := s.failed[answerID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("failed publication %s: %w", answerID, domain.ErrNotFound)
	}
	return s.Publish(ctx, f.pub)
}

// Failed reports whether a failed publication is held for answerID.
func (s *PublishService) Failed(answerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.failed[answerID]
	return ok
}

// PruneFailed drops failed publications recorded before cutoff.
func (s *PublishService) PruneFailed(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, f := range s.failed {
		if f.at.Before(cutoff) {
			delete(s.failed, id)
			n++
		}
	}
	return n
}

func (s *PublishService) forget(answerID string) {
	s.mu.Lock()
	delete(s.failed, answerID)
	s.mu.Unlock()
}

// Published reports whether answerID is recorded as published.
func (s *PublishService) Published(ctx context.Context, answerID string) bool {
	if s.cache == nil {
		return false
	}
	_, ok, err := s.cache.Get(ctx, publishedKeyPrefix+answerID)
	return err == nil && ok
}

func (s *PublishService) publishOnce(ctx context.Context, key string, pub publisher.Publication) error {
	if s.Published(ctx, pub.AnswerID) {
		slog.Info("answer already published, skipping", "answer_id", pub.AnswerID)
		s.forget(pub.AnswerID)
		return nil
	}

	p, ok := s.publishers[pub.Context.Source]
	if !ok {
		return s.fail(ctx, pub, fmt.Errorf("no publisher for source %q: %w", pub.Context.Source, publisher.ErrNotConfigured))
	}

	ctx, span := cfotel.StartPublishSpan(ctx, pub.AnswerID, string(pub.Context.Source))
	defer span.End()

	if err := p.Publish(ctx, pub); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return s.fail(ctx, pub, err)
	}

	at := s.now().UTC()
	s.forget(pub.AnswerID)
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, []byte(at.Format(time.RFC3339Nano)), s.ttl); err != nil {
			slog.Warn("record published answer", "answer_id", pub.AnswerID, "error", err)
		}
	}

	slog.Info("answer published",
		"answer_id", pub.AnswerID,
		"source", pub.Context.Source,
		"origin_ref", pub.Context.OriginRef,
	)
	s.events.Emit(ctx, messagequeue.SubjectAnswerPublished, messagequeue.AnswerPublishedPayload{
		AnswerID:  pub.AnswerID,
		Source:    string(pub.Context.Source),
		OriginRef: pub.Context.OriginRef,
		Text:      pub.Text,
		At:        at,
	}, ws.EventAnswerPublished, ws.AnswerPublishedEvent{
		AnswerID:    pub.AnswerID,
		Source:      string(pub.Context.Source),
		OriginRef:   pub.Context.OriginRef,
		RequesterID: pub.Context.RequesterID,
		Text:        pub.Text,
		At:          at,
	})
	return nil
}

func (s *PublishService) fail(ctx context.Context, pub publisher.Publication, err error) error {
	slog.Error("publish failed",
		"answer_id", pub.AnswerID,
		"source", pub.Context.Source,
		"error", err,
	)
	s.mu.Lock()
	s.failed[pub.AnswerID] = failedPublication{pub: pub, at: s.now()}
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.CapabilityFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("capability", string(CapabilityPublish)),
			attribute.String("source", string(pub.Context.Source)),
		))
	}
	return &CapabilityError{Capability: CapabilityPublish, AnswerID: pub.AnswerID, Err: err}
}
