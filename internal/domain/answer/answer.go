// Package answer provides the request context and answer payload models and
// the deterministic answer synthesizer.
package answer

import (
	"errors"
	"strings"
	"time"
)

// Source identifies the platform a question arrived from.
type Source string

const (
	SourceGitHub Source = "github"
	SourceSlack  Source = "slack"
	SourceAPI    Source = "api"
)

// ValidSource reports whether s is a known source.
func ValidSource(s Source) bool {
	switch s {
	case SourceGitHub, SourceSlack, SourceAPI:
		return true
	}
	return false
}

// RequestContext travels unmodified from ingestion to the workflow.
type RequestContext struct {
	Source      Source `json:"source"`
	OriginRef   string `json:"origin_ref"`   // "owner/repo#42", "C0123/1700000000.000100", ...
	RequesterID string `json:"requester_id"` // platform login of the asker
}

// Validate checks that the context is well-formed.
func (c *RequestContext) Validate() error {
	if !ValidSource(c.Source) {
		return errors.New("invalid source: " + string(c.Source))
	}
	if strings.TrimSpace(c.RequesterID) == "" {
		return errors.New("requester_id is required")
	}
	return nil
}

// Payload is a generated answer on its way through the workflow.
type Payload struct {
	ID               string         `json:"id"`
	OriginalQuestion string         `json:"original_question"`
	MatchedEntryID   string         `json:"matched_entry_id"`
	Text             string         `json:"text"`
	Context          RequestContext `json:"context"`
	CreatedAt        time.Time      `json:"created_at"`
}
