// Package workflow defines the response-delivery policy applied to generated answers.
package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Strob0t/answerdesk/internal/domain"
)

// ActionMode is the configured policy for what happens to a generated answer.
// The set is closed; every switch over it must handle all three values and
// reject anything else with ErrUnknownActionMode.
type ActionMode string

const (
	ModeDirectAnswer     ActionMode = "direct_answer"
	ModeApprovalRequired ActionMode = "approval_required"
	ModeNotifyOnly       ActionMode = "notify_only"
)

// ErrUnknownActionMode is returned for any mode outside the closed set.
var ErrUnknownActionMode = fmt.Errorf("unknown action mode: %w", domain.ErrPrecondition)

// Modes lists all valid action modes.
func Modes() []ActionMode {
	return []ActionMode{ModeDirectAnswer, ModeApprovalRequired, ModeNotifyOnly}
}

// ParseActionMode converts a configuration string into an ActionMode.
// Matching is case-insensitive and accepts the CamelCase spellings
// ("DirectAnswer") as well as snake case.
func ParseActionMode(s string) (ActionMode, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "directanswer":
		return ModeDirectAnswer, nil
	case "approvalrequired":
		return ModeApprovalRequired, nil
	case "notifyonly":
		return ModeNotifyOnly, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownActionMode, s)
}

// Valid reports whether m is one of the known modes.
func (m ActionMode) Valid() bool {
	switch m {
	case ModeDirectAnswer, ModeApprovalRequired, ModeNotifyOnly:
		return true
	}
	return false
}

// Settings is the read-only workflow configuration handed to the core.
type Settings struct {
	MatchThreshold float64    `json:"match_threshold"`
	ActionMode     ActionMode `json:"action_mode"`
	NotifyTargets  []string   `json:"notify_targets"`
}

// Validate checks the settings once at startup.
func (s *Settings) Validate() error {
	if s.MatchThreshold < 0 || s.MatchThreshold > 1 {
		return fmt.Errorf("match threshold %v outside [0,1]: %w", s.MatchThreshold, domain.ErrValidation)
	}
	if !s.ActionMode.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownActionMode, s.ActionMode)
	}
	if s.ActionMode != ModeDirectAnswer && len(DedupeTargets(s.NotifyTargets)) == 0 {
		return errors.New("notify targets are required for action mode " + string(s.ActionMode))
	}
	return nil
}

// DedupeTargets returns targets in first-occurrence order with blanks and
// repeats removed.
func DedupeTargets(targets []string) []string {
	out := make([]string, 0, len(targets))
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// OutcomeKind is the terminal step a dispatch took.
type OutcomeKind string

const (
	OutcomePublished OutcomeKind = "published"
	OutcomePending   OutcomeKind = "pending"
	OutcomeNotified  OutcomeKind = "notified"

	// OutcomePublishFailed is a direct answer whose publish failed. The
	// answer is kept and can be republished under the same id.
	OutcomePublishFailed OutcomeKind = "publish_failed"
)
