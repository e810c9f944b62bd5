// Package memory provides in-process implementations of storage ports, used
// when no database is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/answerdesk/internal/domain/approval"
)

// AuditStore keeps approval decisions in memory.
type AuditStore struct {
	mu       sync.RWMutex
	byAnswer map[string][]approval.AuditEntry
	now      func() time.Time
}

// NewAuditStore creates an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{byAnswer: make(map[string][]approval.AuditEntry), now: time.Now}
}

// RecordDecision implements audit.Store.
func (s *AuditStore) RecordDecision(_ context.Context, e *approval.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	s.byAnswer[e.AnswerID] = append(s.byAnswer[e.AnswerID], *e)
	s.mu.Unlock()
	return nil
}

// ListByAnswer implements audit.Store.
func (s *AuditStore) ListByAnswer(_ context.Context, answerID string) ([]approval.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.byAnswer[answerID]
	out := make([]approval.AuditEntry, len(entries))
	copy(out, entries)
	return out, nil
}
