// Package approval provides the domain model for maintainer approval of
// generated answers: a single-shot state machine plus its audit trail.
package approval

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/answerdesk/internal/domain"
)

// State is the lifecycle state of an approval record.
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
	StateEdited   State = "edited"
)

// Terminal reports whether no further transition is allowed from s.
func (s State) Terminal() bool {
	return s == StateApproved || s == StateRejected || s == StateEdited
}

// Publishable reports whether a record in state s goes to the publish path.
func (s State) Publishable() bool {
	return s == StateApproved || s == StateEdited
}

// Decision is the maintainer's verdict on a pending answer.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionEdit    Decision = "edit"
)

// ValidDecision reports whether d is a known decision.
func ValidDecision(d Decision) bool {
	switch d {
	case DecisionApprove, DecisionReject, DecisionEdit:
		return true
	}
	return false
}

var (
	// ErrDuplicatePending is returned when an answer is submitted twice.
	ErrDuplicatePending = fmt.Errorf("approval already submitted: %w", domain.ErrConflict)
	// ErrAlreadyResolved is returned when a decision targets a terminal record.
	ErrAlreadyResolved = fmt.Errorf("approval already resolved: %w", domain.ErrConflict)
)

// Record tracks one answer awaiting a decision.
type Record struct {
	AnswerID  string     `json:"answer_id"`
	State     State      `json:"state"`
	FinalText string     `json:"final_text,omitempty"`
	DecidedBy string     `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}

// NewRecord creates a pending record for an answer.
func NewRecord(answerID string) Record {
	return Record{AnswerID: answerID, State: StatePending}
}

// DecisionEvent is an inbound decision from an approval surface.
type DecisionEvent struct {
	AnswerID   string   `json:"answer_id"`
	Decision   Decision `json:"decision"`
	DecidedBy  string   `json:"decided_by"`
	EditedText string   `json:"edited_text,omitempty"`
}

// Validate checks that the event is well-formed independent of record state.
func (e *DecisionEvent) Validate() error {
	if strings.TrimSpace(e.AnswerID) == "" {
		return fmt.Errorf("answer_id is required: %w", domain.ErrValidation)
	}
	if !ValidDecision(e.Decision) {
		return fmt.Errorf("invalid decision %q: %w", e.Decision, domain.ErrValidation)
	}
	if strings.TrimSpace(e.DecidedBy) == "" {
		return fmt.Errorf("decided_by is required: %w", domain.ErrValidation)
	}
	if e.Decision == DecisionEdit && strings.TrimSpace(e.EditedText) == "" {
		return fmt.Errorf("edited_text is required for edit: %w", domain.ErrValidation)
	}
	return nil
}

// Apply performs the single Pending -> terminal transition. originalText is the
// answer text used as final text on approve. The record is left untouched when
// an error is returned.
func (r *Record) Apply(ev DecisionEvent, originalText string, now time.Time) error {
	if r.State.Terminal() {
		return fmt.Errorf("answer %s is %s: %w", r.AnswerID, r.State, ErrAlreadyResolved)
	}
	if err := ev.Validate(); err != nil {
		return err
	}

	next := *r
	switch ev.Decision {
	case DecisionApprove:
		next.State = StateApproved
		next.FinalText = originalText
	case DecisionEdit:
		next.State = StateEdited
		next.FinalText = ev.EditedText
	case DecisionReject:
		next.State = StateRejected
		next.FinalText = ""
	default:
		return fmt.Errorf("invalid decision %q: %w", ev.Decision, domain.ErrValidation)
	}
	decidedAt := now.UTC()
	next.DecidedBy = ev.DecidedBy
	next.DecidedAt = &decidedAt

	*r = next
	return nil
}

// AuditEntry archives a terminal decision.
type AuditEntry struct {
	ID             string    `json:"id"`
	AnswerID       string    `json:"answer_id"`
	MatchedEntryID string    `json:"matched_entry_id"`
	Source         string    `json:"source"`
	OriginRef      string    `json:"origin_ref"`
	State          State     `json:"state"`
	FinalText      string    `json:"final_text,omitempty"`
	DecidedBy      string    `json:"decided_by"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	CreatedAt      time.Time `json:"created_at"`
}
