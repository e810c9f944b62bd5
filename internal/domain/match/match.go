// Package match scores a question against knowledge base entries and selects
// the best entry under a confidence threshold.
package match

import (
	"fmt"
	"math"
	"strings"

	"github.com/Strob0t/answerdesk/internal/domain/knowledge"
)

// Result is the outcome of matching one question against a snapshot.
// Confidence is always the best score over all entries, whether or not it
// reached the threshold.
type Result struct {
	Matched    bool    `json:"matched"`
	EntryID    string  `json:"entry_id,omitempty"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Score is a single entry's score together with a short explanation.
type Score struct {
	Value     float64
	Rationale string
}

// Scorer computes how well an entry answers a normalized question.
// Implementations should return values in [0,1]; the matcher clamps anyway.
type Scorer interface {
	Score(normalizedQuestion string, entry *knowledge.Entry) Score
}

// Matcher selects the best entry for a question.
type Matcher struct {
	scorer Scorer
}

// NewMatcher creates a Matcher. A nil scorer selects the KeywordScorer.
func NewMatcher(scorer Scorer) *Matcher {
	if scorer == nil {
		scorer = KeywordScorer{}
	}
	return &Matcher{scorer: scorer}
}

// Normalize prepares a question for scoring. Only case folding is applied.
func Normalize(question string) string {
	return strings.ToLower(question)
}

// best is the accumulator of the scan over entries.
type best struct {
	index int
	score Score
}

// Match scores every entry in caller order and returns the best one. Ties are
// won by the entry seen first: a later entry replaces the current best only
// when its score is strictly greater. A best score of 0 never matches, even
// with a zero threshold.
func (m *Matcher) Match(question string, entries []knowledge.Entry, threshold float64) Result {
	q := Normalize(question)

	acc := best{index: -1}
	for i := range entries {
		s := m.scorer.Score(q, &entries[i])
		s.Value = clamp(s.Value)
		if acc.index < 0 || s.Value > acc.score.Value {
			acc = best{index: i, score: s}
		}
	}

	if acc.index < 0 {
		return Result{Rationale: "knowledge base is empty"}
	}

	res := Result{Confidence: acc.score.Value}
	if acc.score.Value <= 0 || acc.score.Value < threshold {
		res.Rationale = fmt.Sprintf("best score %.2f (entry %q) below threshold %.2f",
			acc.score.Value, entries[acc.index].ID, threshold)
		return res
	}

	res.Matched = true
	res.EntryID = entries[acc.index].ID
	res.Rationale = acc.score.Rationale
	return res
}

// clamp bounds v to [0,1]. NaN is treated as 0.
func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
