// Package knowledge provides the knowledge base entry model.
package knowledge

import (
	"fmt"
	"strings"

	"github.com/Strob0t/answerdesk/internal/domain"
)

// Entry is one curated question/answer record. Entries are immutable once
// loaded; consumers only ever hold a read view of a snapshot.
type Entry struct {
	ID           string   `json:"id" yaml:"id"`
	QuestionText string   `json:"question" yaml:"question"`
	AnswerText   string   `json:"answer" yaml:"answer"`
	Keywords     []string `json:"keywords" yaml:"keywords"`
}

// Validate checks that the entry carries the fields matching depends on.
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("entry id is required: %w", domain.ErrValidation)
	}
	if strings.TrimSpace(e.QuestionText) == "" {
		return fmt.Errorf("entry %q: question is required: %w", e.ID, domain.ErrValidation)
	}
	if strings.TrimSpace(e.AnswerText) == "" {
		return fmt.Errorf("entry %q: answer is required: %w", e.ID, domain.ErrValidation)
	}
	return nil
}

// Normalize returns a copy of e with a trimmed id, blank keywords removed and
// case-insensitive duplicate keywords collapsed (first occurrence kept).
// Keyword text is kept verbatim; surrounding spaces are part of the needle.
func (e Entry) Normalize() Entry {
	out := e
	out.ID = strings.TrimSpace(e.ID)
	out.Keywords = make([]string, 0, len(e.Keywords))
	seen := make(map[string]struct{}, len(e.Keywords))
	for _, kw := range e.Keywords {
		if strings.TrimSpace(kw) == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.Keywords = append(out.Keywords, kw)
	}
	return out
}

// PrepareSnapshot normalizes and validates entries in order and rejects
// duplicate ids. The returned slice preserves the input order.
func PrepareSnapshot(entries []Entry) ([]Entry, error) {
	out := make([]Entry, 0, len(entries))
	ids := make(map[string]struct{}, len(entries))
	for i := range entries {
		e := entries[i].Normalize()
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("entry #%d: %w", i, err)
		}
		if _, dup := ids[e.ID]; dup {
			return nil, fmt.Errorf("duplicate entry id %q: %w", e.ID, domain.ErrValidation)
		}
		ids[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

// Find returns the entry with the given id from a snapshot.
func Find(entries []Entry, id string) (Entry, bool) {
	for i := range entries {
		if entries[i].ID == id {
			return entries[i], true
		}
	}
	return Entry{}, false
}
