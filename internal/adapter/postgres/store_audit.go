package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Strob0t/answerdesk/internal/domain/approval"
)

// RecordDecision implements audit.Store.
func (s *Store) RecordDecision(ctx context.Context, e *approval.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO approval_audit
		   (id, answer_id, matched_entry_id, source, origin_ref, state, final_text, decided_by, response_time_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		e.ID, e.AnswerID, e.MatchedEntryID, e.Source, e.OriginRef, string(e.State),
		e.FinalText, e.DecidedBy, e.ResponseTimeMs,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert approval audit %s: %w", e.AnswerID, err)
	}
	return nil
}

// ListByAnswer implements audit.Store.
func (s *Store) ListByAnswer(ctx context.Context, answerID string) ([]approval.AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, answer_id, matched_entry_id, source, origin_ref, state, final_text,
		        decided_by, response_time_ms, created_at
		 FROM approval_audit WHERE answer_id = $1 ORDER BY created_at ASC`, answerID)
	if err != nil {
		return nil, fmt.Errorf("list approval audit %s: %w", answerID, err)
	}
	defer rows.Close()

	var out []approval.AuditEntry
	for rows.Next() {
		var (
			e     approval.AuditEntry
			state string
		)
		if err := rows.Scan(&e.ID, &e.AnswerID, &e.MatchedEntryID, &e.Source, &e.OriginRef,
			&state, &e.FinalText, &e.DecidedBy, &e.ResponseTimeMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan approval audit: %w", err)
		}
		e.State = approval.State(state)
		out = append(out, e)
	}
	return orEmpty(out), rows.Err()
}
