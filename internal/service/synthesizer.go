package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/answerdesk/internal/domain/answer"
	"github.com/Strob0t/answerdesk/internal/domain/knowledge"
	"github.com/Strob0t/answerdesk/internal/port/generator"
)

var errEmptyGeneration = errors.New("generator returned empty text")

// Synthesizer builds answer payloads. It always produces the deterministic
// draft; when a generator is configured the generated text replaces it.
type Synthesizer struct {
	gen      generator.Generator
	fallback bool
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewSynthesizer creates a Synthesizer. gen may be nil. With fallbackOnError
// a failed generation keeps the draft instead of failing the request.
func NewSynthesizer(gen generator.Generator, fallbackOnError bool) *Synthesizer {
	return &Synthesizer{gen: gen, fallback: fallbackOnError, now: time.Now}
}

// Synthesize builds the payload for a matched entry. Two calls never share a
// createdAt, even within the same clock tick.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, entry *knowledge.Entry, rc answer.RequestContext) (answer.Payload, error) {
	p, err := answer.Synthesize(question, entry, rc, s.tick())
	if err != nil {
		return answer.Payload{}, err
	}
	if s.gen == nil {
		return p, nil
	}

	text, err := s.gen.Generate(ctx, generator.Request{
		Question: question,
		Entry:    *entry,
		Context:  rc,
		Draft:    p.Text,
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptyGeneration
	}
	if err != nil {
		if !s.fallback || ctx.Err() != nil {
			return answer.Payload{}, &CapabilityError{Capability: CapabilityGenerate, AnswerID: p.ID, Err: err}
		}
		slog.Warn("answer generation failed, using draft",
			"answer_id", p.ID, "entry_id", entry.ID, "error", err)
		return p, nil
	}

	p.Text = text
	return p, nil
}

// tick returns the current time at microsecond precision, bumped past the
// previous value when the clock has not advanced.
func (s *Synthesizer) tick() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

