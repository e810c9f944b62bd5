package service

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Strob0t/answerdesk/internal/domain"
	"github.com/Strob0t/answerdesk/internal/domain/approval"
)

func TestTrackerSubmit(t *testing.T) {
	tr := NewApprovalTracker()

	rec, err := tr.Submit(testPayload("a1"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	want := approval.Record{AnswerID: "a1", State: approval.StatePending}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	_, err = tr.Submit(testPayload("a1"))
	if !errors.Is(err, approval.ErrDuplicatePending) || !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected duplicate pending conflict, got %v", err)
	}

	if _, err := tr.Submit(testPayload("")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty id, got %v", err)
	}
}

func TestTrackerResolve(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		ev        approval.DecisionEvent
		wantState approval.State
		wantText  string
		wantErr   error
	}{
		{
			name:      "approve keeps original text",
			ev:        approval.DecisionEvent{Decision: approval.DecisionApprove, DecidedBy: "maint"},
			wantState: approval.StateApproved,
			wantText:  "original text",
		},
		{
			name:      "edit uses edited text",
			ev:        approval.DecisionEvent{Decision: approval.DecisionEdit, DecidedBy: "maint", EditedText: "X"},
			wantState: approval.StateEdited,
			wantText:  "X",
		},
		{
			name:      "reject clears text",
			ev:        approval.DecisionEvent{Decision: approval.DecisionReject, DecidedBy: "maint"},
			wantState: approval.StateRejected,
		},
		{
			name:      "edit without text stays pending",
			ev:        approval.DecisionEvent{Decision: approval.DecisionEdit, DecidedBy: "maint"},
			wantState: approval.StatePending,
			wantErr:   domain.ErrValidation,
		},
		{
			name:      "missing decided_by",
			ev:        approval.DecisionEvent{Decision: approval.DecisionApprove},
			wantState: approval.StatePending,
			wantErr:   domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewApprovalTracker()
			tr.now = func() time.Time { return now }
			if _, err := tr.Submit(testPayload("a1")); err != nil {
				t.Fatal(err)
			}

			tt.ev.AnswerID = "a1"
			ta, err := tr.Resolve(tt.ev)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("Resolve: %v", err)
			}

			stored, _ := tr.Get("a1")
			if stored.Record.State != tt.wantState {
				t.Fatalf("stored state = %s, want %s", stored.Record.State, tt.wantState)
			}
			if tt.wantErr != nil {
				return
			}
			if ta.Record.FinalText != tt.wantText {
				t.Errorf("final text = %q, want %q", ta.Record.FinalText, tt.wantText)
			}
			if ta.Record.DecidedAt == nil || !ta.Record.DecidedAt.Equal(now) {
				t.Errorf("decided_at = %v, want %v", ta.Record.DecidedAt, now)
			}
			if ta.Answer.ID != "a1" {
				t.Errorf("expected answer to travel with record, got %+v", ta.Answer)
			}
		})
	}
}

func TestTrackerResolveUnknown(t *testing.T) {
	tr := NewApprovalTracker()
	_, err := tr.Resolve(approval.DecisionEvent{AnswerID: "nope", Decision: approval.DecisionApprove, DecidedBy: "m"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTrackerDoubleResolve(t *testing.T) {
	tr := NewApprovalTracker()
	if _, err := tr.Submit(testPayload("a1")); err != nil {
		t.Fatal(err)
	}
	first := approval.DecisionEvent{AnswerID: "a1", Decision: approval.DecisionApprove, DecidedBy: "alice"}
	if _, err := tr.Resolve(first); err != nil {
		t.Fatal(err)
	}

	second := approval.DecisionEvent{AnswerID: "a1", Decision: approval.DecisionReject, DecidedBy: "bob"}
	_, err := tr.Resolve(second)
	if !errors.Is(err, approval.ErrAlreadyResolved) {
		t.Fatalf("expected already resolved, got %v", err)
	}

	stored, _ := tr.Get("a1")
	if stored.Record.State != approval.StateApproved || stored.Record.DecidedBy != "alice" {
		t.Fatalf("first decision must stand, got %+v", stored.Record)
	}
}

func TestTrackerConcurrentResolveSingleWinner(t *testing.T) {
	tr := NewApprovalTracker()
	if _, err := tr.Submit(testPayload("a1")); err != nil {
		t.Fatal(err)
	}

	const n = 32
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.Resolve(approval.DecisionEvent{
				AnswerID:   "a1",
				Decision:   approval.DecisionEdit,
				DecidedBy:  fmt.Sprintf("m%d", i),
				EditedText: fmt.Sprintf("text %d", i),
			})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, approval.ErrAlreadyResolved):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 || conflicts.Load() != n-1 {
		t.Fatalf("wins=%d conflicts=%d, want 1 and %d", wins.Load(), conflicts.Load(), n-1)
	}
	if size := tr.locks.size(); size != 0 {
		t.Fatalf("lock table should be empty after use, has %d keys", size)
	}
}

func TestTrackerDistinctKeysInParallel(t *testing.T) {
	tr := NewApprovalTracker()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("a%02d", i)
			if _, err := tr.Submit(testPayload(id)); err != nil {
				t.Errorf("Submit %s: %v", id, err)
			}
		}()
	}
	wg.Wait()

	if got := len(tr.ListPending()); got != 50 {
		t.Fatalf("expected 50 pending, got %d", got)
	}
}

func TestTrackerListPendingOrder(t *testing.T) {
	tr := NewApprovalTracker()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		p := testPayload(id)
		p.CreatedAt = base.Add(time.Duration(2-i) * time.Minute)
		if _, err := tr.Submit(p); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := tr.Resolve(approval.DecisionEvent{AnswerID: "a", Decision: approval.DecisionReject, DecidedBy: "m"}); err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, ta := range tr.ListPending() {
		got = append(got, ta.Answer.ID)
	}
	if diff := cmp.Diff([]string{"b", "c"}, got); diff != "" {
		t.Errorf("pending order (-want +got):\n%s", diff)
	}
	if len(tr.List()) != 3 {
		t.Errorf("List should include resolved records")
	}
}

func TestTrackerPrune(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tr := NewApprovalTracker()
	tr.now = func() time.Time { return now }

	for _, id := range []string{"old", "pending"} {
		if _, err := tr.Submit(testPayload(id)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := tr.Resolve(approval.DecisionEvent{AnswerID: "old", Decision: approval.DecisionApprove, DecidedBy: "m"}); err != nil {
		t.Fatal(err)
	}

	if n := tr.Prune(now); n != 0 {
		t.Fatalf("cutoff equal to decision time must not prune, pruned %d", n)
	}
	if n := tr.Prune(now.Add(time.Second)); n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}
	if _, err := tr.Get("old"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected pruned record gone, got %v", err)
	}
	if _, err := tr.Get("pending"); err != nil {
		t.Fatalf("pending record must survive prune: %v", err)
	}
}

func TestTrackerPrunedIDStaysResolved(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tr := NewApprovalTracker()
	tr.now = func() time.Time { return now }

	if _, err := tr.Submit(testPayload("a1")); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Resolve(approval.DecisionEvent{AnswerID: "a1", Decision: approval.DecisionReject, DecidedBy: "m"}); err != nil {
		t.Fatal(err)
	}
	if n := tr.Prune(now.Add(time.Second)); n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}

	_, err := tr.Resolve(approval.DecisionEvent{AnswerID: "a1", Decision: approval.DecisionApprove, DecidedBy: "m2"})
	if !errors.Is(err, approval.ErrAlreadyResolved) {
		t.Fatalf("resolve after prune: err = %v, want already resolved", err)
	}
	if _, err := tr.Submit(testPayload("a1")); !errors.Is(err, approval.ErrAlreadyResolved) {
		t.Fatalf("resubmit after prune: err = %v, want already resolved", err)
	}
	if _, err := tr.Get("a1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("pruned record must stay gone, got %v", err)
	}
	if _, err := tr.Resolve(approval.DecisionEvent{AnswerID: "never", Decision: approval.DecisionApprove, DecidedBy: "m"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown id: err = %v, want not found", err)
	}
}
