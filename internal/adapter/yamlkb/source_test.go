package yamlkb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Strob0t/answerdesk/internal/domain"
)

const sample = `entries:
  - id: dev-env
    question: How do I set up the development environment?
    answer: Run make bootstrap.
    keywords: [setup, environment, Setup]
  - id: tests
    question: How do I run the tests?
    answer: Run make test.
    keywords: [test]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestParse(t *testing.T) {
	entries, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "dev-env" || entries[1].ID != "tests" {
		t.Errorf("order not preserved: %v", entries)
	}
	if got := len(entries[0].Keywords); got != 2 {
		t.Errorf("expected duplicate keyword collapsed, got %d keywords", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown field", "entries:\n  - id: a\n    question: q\n    answer: a\n    tags: [x]\n"},
		{"missing answer", "entries:\n  - id: a\n    question: q\n"},
		{"duplicate id", "entries:\n  - {id: a, question: q, answer: a}\n  - {id: a, question: q2, answer: a2}\n"},
		{"not yaml", "entries: [:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	_, err := Parse([]byte("entries:\n  - id: a\n    question: q\n"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestSource_ReloadKeepsSnapshotOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.yaml")
	writeFile(t, path, sample)

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	writeFile(t, path, "entries:\n  - id: broken\n")
	if err := src.Reload(); err == nil {
		t.Fatal("expected reload error")
	}

	entries, _ := src.Snapshot(context.Background())
	if len(entries) != 2 {
		t.Fatalf("expected previous snapshot kept, got %d entries", len(entries))
	}
}

func TestOpen_MissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSource_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "knowledge.yaml")
	writeFile(t, path, sample)

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	writeFile(t, filepath.Join(dir, "other.yaml"), "ignored")
	writeFile(t, path, "entries:\n  - {id: only, question: q, answer: a}\n")

	deadline := time.Now().Add(5 * time.Second)
	for {
		entries, _ := src.Snapshot(ctx)
		if len(entries) == 1 && entries[0].ID == "only" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("snapshot not reloaded, still %v", entries)
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
