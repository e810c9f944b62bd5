package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/answerdesk/internal/adapter/postgres"
	"github.com/Strob0t/answerdesk/internal/domain"
	"github.com/Strob0t/answerdesk/internal/domain/approval"
	"github.com/Strob0t/answerdesk/internal/domain/knowledge"
)

// setupStore creates a pgxpool connection, runs all migrations, and returns a
// ready-to-use Store. The pool is closed via t.Cleanup.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()
	if err := postgres.Migrate(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return postgres.NewStore(pool)
}

func TestStore_Knowledge(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	initial := []knowledge.Entry{
		{ID: "tests", QuestionText: "How do I run the tests?", AnswerText: "make test", Keywords: []string{"test"}},
		{ID: "dev-env", QuestionText: "How do I set up the development environment?", AnswerText: "make bootstrap", Keywords: []string{"setup", "environment"}},
	}
	if err := store.ReplaceEntries(ctx, initial); err != nil {
		t.Fatalf("ReplaceEntries: %v", err)
	}
	t.Cleanup(func() { _ = store.ReplaceEntries(context.Background(), nil) })

	t.Run("SnapshotOrder", func(t *testing.T) {
		got, err := store.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if diff := cmp.Diff(initial, got); diff != "" {
			t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Upsert", func(t *testing.T) {
		err := store.UpsertEntries(ctx, []knowledge.Entry{
			{ID: "tests", QuestionText: "How do I run the tests?", AnswerText: "go test ./...", Keywords: []string{"test"}},
			{ID: "release", QuestionText: "How do I cut a release?", AnswerText: "make release"},
		})
		if err != nil {
			t.Fatalf("UpsertEntries: %v", err)
		}
		got, err := store.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		ids := make([]string, 0, len(got))
		for _, e := range got {
			ids = append(ids, e.ID)
		}
		if diff := cmp.Diff([]string{"tests", "dev-env", "release"}, ids); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
		if got[0].AnswerText != "go test ./..." {
			t.Errorf("expected updated answer, got %q", got[0].AnswerText)
		}
	})

	t.Run("GetAndDelete", func(t *testing.T) {
		if _, err := store.GetEntry(ctx, "release"); err != nil {
			t.Fatalf("GetEntry: %v", err)
		}
		if err := store.DeleteEntry(ctx, "release"); err != nil {
			t.Fatalf("DeleteEntry: %v", err)
		}
		if _, err := store.GetEntry(ctx, "release"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := store.DeleteEntry(ctx, "release"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("InvalidReplaceKeepsData", func(t *testing.T) {
		err := store.ReplaceEntries(ctx, []knowledge.Entry{{ID: "x"}})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		got, _ := store.Snapshot(ctx)
		if len(got) == 0 {
			t.Fatal("invalid replace must not clear the table")
		}
	})
}

func TestStore_Audit(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	answerID := uuid.NewString()

	e := approval.AuditEntry{
		AnswerID:       answerID,
		MatchedEntryID: "dev-env",
		Source:         "github",
		OriginRef:      "acme/widgets#42",
		State:          approval.StateEdited,
		FinalText:      "edited",
		DecidedBy:      "maintainer",
		ResponseTimeMs: 1200,
	}
	if err := store.RecordDecision(ctx, &e); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at filled in, got %+v", e)
	}

	got, err := store.ListByAnswer(ctx, answerID)
	if err != nil {
		t.Fatalf("ListByAnswer: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].State != approval.StateEdited || got[0].FinalText != "edited" {
		t.Errorf("unexpected entry: %+v", got[0])
	}

	none, err := store.ListByAnswer(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("ListByAnswer: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", none)
	}
}

func TestMigrator_VersionAfterStartup(t *testing.T) {
	setupStore(t)

	m, err := postgres.NewMigrator(os.Getenv("DATABASE_URL"))
	if err != nil {
		t.Fatalf("NewMigrator: %v", err)
	}
	defer func() { _ = m.Close() }()

	v, err := m.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v < 1 {
		t.Errorf("version = %d, want >= 1", v)
	}
	if n, err := m.Up(context.Background()); err != nil || n != 0 {
		t.Errorf("second Up = (%d, %v), want (0, nil)", n, err)
	}
}
