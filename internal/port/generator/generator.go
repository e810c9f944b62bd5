// Package generator defines the port for language-model answer generation.
package generator

import (
	"context"

	"github.com/Strob0t/answerdesk/internal/domain/answer"
	"github.com/Strob0t/answerdesk/internal/domain/knowledge"
)

// Request carries everything a generator may use to personalize an answer.
type Request struct {
	Question string                `json:"question"`
	Entry    knowledge.Entry       `json:"entry"`
	Context  answer.RequestContext `json:"context"`
	Draft    string                `json:"draft"` // deterministic baseline text
}

// Generator turns a matched entry into final answer text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
