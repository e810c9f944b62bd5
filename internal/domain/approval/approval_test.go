package approval

import (
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/answerdesk/internal/domain"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRecord_Apply(t *testing.T) {
	tests := []struct {
		name      string
		ev        DecisionEvent
		wantState State
		wantText  string
	}{
		{"approve keeps original", DecisionEvent{AnswerID: "a", Decision: DecisionApprove, DecidedBy: "m"}, StateApproved, "original"},
		{"edit uses edited text", DecisionEvent{AnswerID: "a", Decision: DecisionEdit, DecidedBy: "m", EditedText: "X"}, StateEdited, "X"},
		{"reject clears text", DecisionEvent{AnswerID: "a", Decision: DecisionReject, DecidedBy: "m"}, StateRejected, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecord("a")
			if err := r.Apply(tt.ev, "original", now); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.State != tt.wantState {
				t.Errorf("state = %q, want %q", r.State, tt.wantState)
			}
			if r.FinalText != tt.wantText {
				t.Errorf("final text = %q, want %q", r.FinalText, tt.wantText)
			}
			if r.DecidedBy != "m" || r.DecidedAt == nil || !r.DecidedAt.Equal(now) {
				t.Errorf("decision metadata not recorded: %+v", r)
			}
		})
	}
}

func TestRecord_ApplyTwiceFails(t *testing.T) {
	r := NewRecord("a")
	if err := r.Apply(DecisionEvent{AnswerID: "a", Decision: DecisionApprove, DecidedBy: "m"}, "t", now); err != nil {
		t.Fatal(err)
	}
	before := r

	err := r.Apply(DecisionEvent{AnswerID: "a", Decision: DecisionReject, DecidedBy: "n"}, "t", now.Add(time.Hour))
	if !errors.Is(err, ErrAlreadyResolved) || !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
	if r.State != before.State || r.DecidedBy != before.DecidedBy {
		t.Fatal("record mutated by rejected transition")
	}
}

func TestRecord_ApplyInvalidLeavesPending(t *testing.T) {
	cases := []DecisionEvent{
		{AnswerID: "a", Decision: DecisionEdit, DecidedBy: "m"},
		{AnswerID: "a", Decision: DecisionEdit, DecidedBy: "m", EditedText: "   "},
		{AnswerID: "a", Decision: "maybe", DecidedBy: "m"},
		{AnswerID: "a", Decision: DecisionApprove},
	}
	for _, ev := range cases {
		r := NewRecord("a")
		err := r.Apply(ev, "t", now)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%+v: expected ErrValidation, got %v", ev, err)
		}
		if r.State != StatePending || r.DecidedAt != nil {
			t.Errorf("%+v: record must stay pending, got %+v", ev, r)
		}
	}
}

func TestState_Predicates(t *testing.T) {
	if StatePending.Terminal() {
		t.Error("pending must not be terminal")
	}
	for _, s := range []State{StateApproved, StateRejected, StateEdited} {
		if !s.Terminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
	if !StateApproved.Publishable() || !StateEdited.Publishable() {
		t.Error("approved and edited must be publishable")
	}
	if StateRejected.Publishable() || StatePending.Publishable() {
		t.Error("rejected and pending must not be publishable")
	}
}
