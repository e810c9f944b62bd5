// Package knowledge defines the read-only knowledge base port.
package knowledge

import (
	"context"

	kb "github.com/Strob0t/answerdesk/internal/domain/knowledge"
)

// Source returns the current ordered snapshot of knowledge base entries.
// The slice must be treated as read-only by callers; loading, refreshing and
// versioning are the implementation's concern.
type Source interface {
	Snapshot(ctx context.Context) ([]kb.Entry, error)
}

// Static is a Source over a fixed, already prepared slice of entries.
type Static []kb.Entry

// Snapshot implements Source.
func (s Static) Snapshot(context.Context) ([]kb.Entry, error) {
	return s, nil
}
