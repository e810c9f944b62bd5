package match

import (
	"fmt"
	"math"
	"strings"

	"github.com/Strob0t/answerdesk/internal/domain/knowledge"
)

// Weights of the keyword heuristic.
const (
	KeywordWeight = 0.2
	PrefixWeight  = 0.5

	// PrefixLength is the number of leading characters of an entry's question
	// that must appear in the asked question to earn PrefixWeight.
	// The value is a placeholder carried over from the first heuristic and is
	// length sensitive (short questions match on almost anything); replace the
	// scorer rather than tuning this number.
	PrefixLength = 10
)

// KeywordScorer is the baseline substring heuristic: KeywordWeight for every
// distinct case-folded entry keyword contained in the question plus
// PrefixWeight when the question contains the start of the entry's question
// text. Keywords are matched verbatim, surrounding spaces included. Blank
// needles never score.
type KeywordScorer struct{}

// Score implements Scorer.
func (KeywordScorer) Score(q string, e *knowledge.Entry) Score {
	var hits []string
	seen := make(map[string]struct{}, len(e.Keywords))
	for _, kw := range e.Keywords {
		if strings.TrimSpace(kw) == "" {
			continue
		}
		kw = strings.ToLower(kw)
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		if strings.Contains(q, kw) {
			hits = append(hits, kw)
		}
	}

	value := float64(len(hits)) * KeywordWeight

	prefix := questionPrefix(e.QuestionText)
	prefixHit := prefix != "" && strings.Contains(q, prefix)
	if prefixHit {
		value += PrefixWeight
	}

	value = math.Min(round(value), 1)

	var parts []string
	if len(hits) > 0 {
		parts = append(parts, fmt.Sprintf("keywords %s", strings.Join(hits, ", ")))
	}
	if prefixHit {
		parts = append(parts, fmt.Sprintf("question prefix %q", prefix))
	}
	rationale := "no keyword or prefix overlap"
	if len(parts) > 0 {
		rationale = "matched " + strings.Join(parts, "; ")
	}

	return Score{Value: value, Rationale: rationale}
}

// questionPrefix returns the case-folded first PrefixLength runes of text.
func questionPrefix(text string) string {
	r := []rune(strings.ToLower(text))
	if len(r) > PrefixLength {
		r = r[:PrefixLength]
	}
	return string(r)
}

// round drops float noise from repeated KeywordWeight additions.
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
