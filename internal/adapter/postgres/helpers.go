package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/answerdesk/internal/domain"
)

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// orEmpty turns nil into an empty slice, so keyword arrays are stored as
// '{}' rather than NULL and JSON responses carry [] instead of null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// wrapLookup annotates err with what was looked up and maps a missing row
// to domain.ErrNotFound.
func wrapLookup(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, domain.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", what, id, err)
}
