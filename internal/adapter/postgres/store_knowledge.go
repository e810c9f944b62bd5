package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/answerdesk/internal/domain/knowledge"
)

// Snapshot returns all knowledge entries in curated order.
func (s *Store) Snapshot(ctx context.Context) ([]knowledge.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, question, answer, keywords FROM knowledge_entries ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []knowledge.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list knowledge entries: %w", err)
	}
	return orEmpty(entries), nil
}

// GetEntry returns a single entry by id.
func (s *Store) GetEntry(ctx context.Context, id string) (knowledge.Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, question, answer, keywords FROM knowledge_entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if err != nil {
		return knowledge.Entry{}, wrapLookup(err, "get knowledge entry", id)
	}
	return e, nil
}

// ReplaceEntries swaps the whole knowledge base for entries in one transaction.
// The entries are validated first; positions follow slice order.
func (s *Store) ReplaceEntries(ctx context.Context, entries []knowledge.Entry) error {
	prepared, err := knowledge.PrepareSnapshot(entries)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM knowledge_entries`); err != nil {
		return fmt.Errorf("clear knowledge entries: %w", err)
	}

	rows := make([][]any, 0, len(prepared))
	for i := range prepared {
		e := &prepared[i]
		rows = append(rows, []any{e.ID, i, e.QuestionText, e.AnswerText, orEmpty(e.Keywords)})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"knowledge_entries"},
		[]string{"id", "position", "question", "answer", "keywords"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("copy knowledge entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit knowledge entries: %w", err)
	}
	return nil
}

// UpsertEntries updates existing entries in place and appends new ones after
// the current last position.
func (s *Store) UpsertEntries(ctx context.Context, entries []knowledge.Entry) error {
	prepared, err := knowledge.PrepareSnapshot(entries)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var next int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM knowledge_entries`).Scan(&next); err != nil {
		return fmt.Errorf("next knowledge position: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range prepared {
		e := &prepared[i]
		batch.Queue(
			`INSERT INTO knowledge_entries (id, position, question, answer, keywords)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE
			 SET question = EXCLUDED.question, answer = EXCLUDED.answer,
			     keywords = EXCLUDED.keywords, updated_at = now()`,
			e.ID, next+i, e.QuestionText, e.AnswerText, orEmpty(e.Keywords))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert knowledge entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit knowledge entries: %w", err)
	}
	return nil
}

// DeleteEntry removes one entry by id.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM knowledge_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete knowledge entry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapLookup(pgx.ErrNoRows, "delete knowledge entry", id)
	}
	return nil
}

func scanEntry(row rowScanner) (knowledge.Entry, error) {
	var e knowledge.Entry
	if err := row.Scan(&e.ID, &e.QuestionText, &e.AnswerText, &e.Keywords); err != nil {
		return knowledge.Entry{}, err
	}
	e.Keywords = orEmpty(e.Keywords)
	return e, nil
}
