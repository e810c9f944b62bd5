package knowledge

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Strob0t/answerdesk/internal/domain"
)

func TestEntry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		wantErr bool
	}{
		{"valid", Entry{ID: "setup", QuestionText: "How do I set up?", AnswerText: "Run make."}, false},
		{"missing id", Entry{QuestionText: "q", AnswerText: "a"}, true},
		{"blank id", Entry{ID: "  ", QuestionText: "q", AnswerText: "a"}, true},
		{"missing question", Entry{ID: "x", AnswerText: "a"}, true},
		{"missing answer", Entry{ID: "x", QuestionText: "q"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestEntry_NormalizeKeywords(t *testing.T) {
	e := Entry{ID: " a ", Keywords: []string{"Setup", "", "  ", "setup", " install ", "INSTALL", "env"}}
	got := e.Normalize()

	if got.ID != "a" {
		t.Errorf("expected trimmed id, got %q", got.ID)
	}
	want := []string{"Setup", " install ", "INSTALL", "env"}
	if diff := cmp.Diff(want, got.Keywords); diff != "" {
		t.Errorf("keywords mismatch (-want +got):\n%s", diff)
	}
	if len(e.Keywords) != 7 {
		t.Error("Normalize must not mutate the receiver's keywords")
	}
}

func TestPrepareSnapshot(t *testing.T) {
	entries := []Entry{
		{ID: "b", QuestionText: "q1", AnswerText: "a1"},
		{ID: "a", QuestionText: "q2", AnswerText: "a2"},
	}
	got, err := PrepareSnapshot(entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("order not preserved: %v", got)
	}

	_, err = PrepareSnapshot(append(entries, Entry{ID: "a", QuestionText: "q3", AnswerText: "a3"}))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for duplicate id, got %v", err)
	}
}

func TestFind(t *testing.T) {
	entries := []Entry{{ID: "x"}, {ID: "y"}}
	if e, ok := Find(entries, "y"); !ok || e.ID != "y" {
		t.Fatalf("expected to find y, got %v %v", e, ok)
	}
	if _, ok := Find(entries, "z"); ok {
		t.Fatal("expected z to be missing")
	}
}
