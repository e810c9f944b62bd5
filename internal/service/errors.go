package service

import (
	"fmt"

	"github.com/Strob0t/answerdesk/internal/domain"
)

// Capability names an external collaborator of the workflow.
type Capability string

const (
	CapabilityPublish  Capability = "publish"
	CapabilityNotify   Capability = "notify"
	CapabilityGenerate Capability = "generate"
	CapabilityAudit    Capability = "audit"
)

// CapabilityError reports a failed call to an external capability. It
// matches domain.ErrExternal as well as the underlying cause.
type CapabilityError struct {
	Capability Capability
	AnswerID   string
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s failed for answer %s: %v", e.Capability, e.AnswerID, e.Err)
}

// Unwrap exposes both the cause and domain.ErrExternal to errors.Is.
func (e *CapabilityError) Unwrap() []error {
	return []error{e.Err, domain.ErrExternal}
}
