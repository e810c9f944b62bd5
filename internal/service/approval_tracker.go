package service

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/answerdesk/internal/domain"
	"github.com/Strob0t/answerdesk/internal/domain/answer"
	"github.com/Strob0t/answerdesk/internal/domain/approval"
)

// TrackedAnswer is an approval record together with the answer it governs.
type TrackedAnswer struct {
	Record approval.Record `json:"record"`
	Answer answer.Payload  `json:"answer"`
}

// ApprovalTracker holds answers awaiting a maintainer decision. Operations
// on one answer id are serialized; different ids proceed in parallel. The
// tracker never calls out while holding a key lock, so callers are free to
// publish or notify with the returned values.
type ApprovalTracker struct {
	locks *keyLocks
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]TrackedAnswer
	// pruned keeps the terminal state of records dropped by Prune so a
	// decided id can be neither re-decided nor resubmitted.
	pruned map[string]approval.State
}

// NewApprovalTracker creates an empty tracker.
func NewApprovalTracker() *ApprovalTracker {
	return &ApprovalTracker{
		locks:   newKeyLocks(),
		now:     time.Now,
		entries: make(map[string]TrackedAnswer),
		pruned:  make(map[string]approval.State),
	}
}

// Submit registers a pending record for p. Submitting the same answer id
// twice fails with approval.ErrDuplicatePending, or approval.ErrAlreadyResolved
// once the earlier record has been decided and pruned.
func (t *ApprovalTracker) Submit(p answer.Payload) (approval.Record, error) {
	if strings.TrimSpace(p.ID) == "" {
		return approval.Record{}, fmt.Errorf("answer id is required: %w", domain.ErrValidation)
	}
	unlock := t.locks.lock(p.ID)
	defer unlock()

	if _, exists := t.load(p.ID); exists {
		return approval.Record{}, fmt.Errorf("answer %s: %w", p.ID, approval.ErrDuplicatePending)
	}
	if state, ok := t.tombstone(p.ID); ok {
		return approval.Record{}, fmt.Errorf("answer %s is %s: %w", p.ID, state, approval.ErrAlreadyResolved)
	}
	rec := approval.NewRecord(p.ID)
	t.store(TrackedAnswer{Record: rec, Answer: p})
	return rec, nil
}

// Resolve applies a decision to a pending record and returns the updated
// record with its answer. Unknown ids yield domain.ErrNotFound, terminal
// records approval.ErrAlreadyResolved; in every error case the stored record
// is unchanged.
func (t *ApprovalTracker) Resolve(ev approval.DecisionEvent) (TrackedAnswer, error) {
	unlock := t.locks.lock(ev.AnswerID)
	defer unlock()

	ta, ok := t.load(ev.AnswerID)
	if !ok {
		if state, ok := t.tombstone(ev.AnswerID); ok {
			return TrackedAnswer{}, fmt.Errorf("answer %s is %s: %w", ev.AnswerID, state, approval.ErrAlreadyResolved)
		}
		return TrackedAnswer{}, fmt.Errorf("approval %s: %w", ev.AnswerID, domain.ErrNotFound)
	}
	rec := ta.Record
	if err := rec.Apply(ev, ta.Answer.Text, t.now()); err != nil {
		return TrackedAnswer{}, err
	}
	ta.Record = rec
	t.store(ta)
	return ta, nil
}

// Get returns the tracked answer for answerID.
func (t *ApprovalTracker) Get(answerID string) (TrackedAnswer, error) {
	ta, ok := t.load(answerID)
	if !ok {
		return TrackedAnswer{}, fmt.Errorf("approval %s: %w", answerID, domain.ErrNotFound)
	}
	return ta, nil
}

// ListPending returns all pending answers, oldest first.
func (t *ApprovalTracker) ListPending() []TrackedAnswer {
	return t.list(func(s approval.State) bool { return s == approval.StatePending })
}

// List returns all tracked answers, oldest first.
func (t *ApprovalTracker) List() []TrackedAnswer {
	return t.list(func(approval.State) bool { return true })
}

// Prune forgets terminal records decided before cutoff and returns how many
// were removed. Pending records are never pruned. Only the id and final
// state of a pruned record are kept.
func (t *ApprovalTracker) Prune(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, ta := range t.entries {
		r := ta.Record
		if r.State.Terminal() && r.DecidedAt != nil && r.DecidedAt.Before(cutoff) {
			delete(t.entries, id)
			t.pruned[id] = r.State
			n++
		}
	}
	return n
}

func (t *ApprovalTracker) list(keep func(approval.State) bool) []TrackedAnswer {
	t.mu.RLock()
	out := make([]TrackedAnswer, 0, len(t.entries))
	for _, ta := range t.entries {
		if keep(ta.Record.State) {
			out = append(out, ta)
		}
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Answer, out[j].Answer
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func (t *ApprovalTracker) load(id string) (TrackedAnswer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ta, ok := t.entries[id]
	return ta, ok
}

func (t *ApprovalTracker) tombstone(id string) (approval.State, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.pruned[id]
	return s, ok
}

func (t *ApprovalTracker) store(ta TrackedAnswer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[ta.Record.AnswerID] = ta
}
