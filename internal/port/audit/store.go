// Package audit defines the port for archiving approval decisions.
package audit

import (
	"context"

	"github.com/Strob0t/answerdesk/internal/domain/approval"
)

// Store persists terminal approval decisions.
type Store interface {
	// RecordDecision inserts an entry, filling in ID and CreatedAt.
	RecordDecision(ctx context.Context, e *approval.AuditEntry) error

	// ListByAnswer returns the entries for an answer, oldest first.
	ListByAnswer(ctx context.Context, answerID string) ([]approval.AuditEntry, error)
}
