// Package notifier defines the notification port (interface), its capabilities
// and target addressing.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Strob0t/answerdesk/internal/domain/answer"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Kind distinguishes approval requests from plain notifications.
type Kind string

const (
	KindApprovalRequest Kind = "approval_request"
	KindNotification    Kind = "notification"
)

// Notification is the payload sent through a Notifier to a single target.
type Notification struct {
	Kind     Kind                  `json:"kind"`
	Target   Target                `json:"target"`
	AnswerID string                `json:"answer_id"`
	Question string                `json:"question"`
	Text     string                `json:"text"`
	Context  answer.RequestContext `json:"context"`
}

// Title returns a one-line summary suitable for headers and subjects.
func (n *Notification) Title() string {
	if n.Kind == KindApprovalRequest {
		return "Answer awaiting approval"
	}
	return "New answer generated"
}

// Capabilities declares which features a notifier supports.
type Capabilities struct {
	RichFormatting bool `json:"rich_formatting"`
	Interactive    bool `json:"interactive"` // can collect approve/reject in-channel
}

// Notifier is the port interface for sending notifications.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "slack", "email").
	Name() string

	// Capabilities returns what this notifier supports.
	Capabilities() Capabilities

	// Send delivers a notification to n.Target.
	Send(ctx context.Context, n Notification) error
}

// Target is a parsed notify target of the form "<provider>:<address>",
// e.g. "slack:#maintainers", "email:ops@example.com", "discord:releases".
type Target struct {
	Provider string `json:"provider"`
	Address  string `json:"address"`
}

// String returns the canonical "<provider>:<address>" form.
func (t Target) String() string {
	return t.Provider + ":" + t.Address
}

// ParseTarget splits a configured target string.
func ParseTarget(raw string) (Target, error) {
	provider, address, ok := strings.Cut(strings.TrimSpace(raw), ":")
	provider = strings.ToLower(strings.TrimSpace(provider))
	address = strings.TrimSpace(address)
	if !ok || provider == "" || address == "" {
		return Target{}, fmt.Errorf("notifier: invalid target %q (want provider:address)", raw)
	}
	return Target{Provider: provider, Address: address}, nil
}
