package refine

import (
	"fmt"
	"strings"
	"unicode"
)

// Safety thresholds for accepting a corrected paragraph. A correction
// that shrinks or grows the text beyond these ratios, or that changes
// the count of any legal operator term, is discarded in favor of the
// original paragraph.
const (
	minLengthRatio = 0.95
	minWordRatio   = 0.90
)

// legalTerms are operator words whose presence or absence changes the
// legal meaning of a clause. Counts must match exactly between the
// original and the corrected paragraph. French and English are both
// covered since scanned contracts in the corpus mix the two.
var legalTerms = []string{
	// Negations.
	"ne", "pas", "non", "ni", "aucun", "aucune", "jamais", "sans",
	"not", "no", "never", "without", "none",
	// Obligation and permission.
	"doit", "doivent", "devra", "devront", "devait",
	"peut", "peuvent", "pourra", "pourront",
	"interdit", "interdite", "obligatoire", "obligation",
	"must", "shall", "may", "cannot", "prohibited", "mandatory",
	// Temporal and conditional operators.
	"avant", "apres", "après", "sauf", "si", "lorsque", "des", "dès",
	"before", "after", "unless", "if", "until", "except",
}

// GateResult reports the outcome of a single safety validation.
type GateResult struct {
	OK     bool
	Reason string
}

// validateCorrection decides whether a corrected paragraph is safe to
// substitute for the original. An identical correction is always safe.
func validateCorrection(original, corrected string) GateResult {
	if corrected == original {
		return GateResult{OK: true}
	}

	origLen := len([]rune(original))
	corrLen := len([]rune(corrected))
	if origLen == 0 {
		return GateResult{OK: false, Reason: "empty original paragraph"}
	}
	if ratio(origLen, corrLen) < minLengthRatio {
		return GateResult{
			OK:     false,
			Reason: fmt.Sprintf("length ratio %.3f below %.2f", ratio(origLen, corrLen), minLengthRatio),
		}
	}

	origWords := len(strings.Fields(original))
	corrWords := len(strings.Fields(corrected))
	if origWords == 0 {
		return GateResult{OK: false, Reason: "original paragraph has no words"}
	}
	if ratio(origWords, corrWords) < minWordRatio {
		return GateResult{
			OK:     false,
			Reason: fmt.Sprintf("word count ratio %.3f below %.2f", ratio(origWords, corrWords), minWordRatio),
		}
	}

	origTerms := countLegalTerms(original)
	corrTerms := countLegalTerms(corrected)
	for _, term := range legalTerms {
		if origTerms[term] != corrTerms[term] {
			return GateResult{
				OK: false,
				Reason: fmt.Sprintf("legal term %q count changed (%d -> %d)",
					term, origTerms[term], corrTerms[term]),
			}
		}
	}

	return GateResult{OK: true}
}

// ratio returns min/max as a float, 1.0 when both are zero.
func ratio(a, b int) float64 {
	if a == b {
		return 1.0
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi == 0 {
		return 1.0
	}
	return float64(lo) / float64(hi)
}

// countLegalTerms tokenizes on non-letter runes and counts whole-word,
// case-insensitive occurrences of each watched term.
func countLegalTerms(s string) map[string]int {
	counts := make(map[string]int, len(legalTerms))
	watched := make(map[string]bool, len(legalTerms))
	for _, t := range legalTerms {
		watched[t] = true
	}
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, tok := range tokens {
		if watched[tok] {
			counts[tok]++
		}
	}
	return counts
}

// charDiffRatio measures how much of the original changed, as the
// fraction of positions whose rune differs plus the length delta,
// over the original length. Identical strings score 0.
func charDiffRatio(original, corrected string) float64 {
	if original == corrected {
		return 0
	}
	or := []rune(original)
	cr := []rune(corrected)
	if len(or) == 0 {
		return 1.0
	}
	shorter := len(or)
	if len(cr) < shorter {
		shorter = len(cr)
	}
	diff := 0
	for i := 0; i < shorter; i++ {
		if or[i] != cr[i] {
			diff++
		}
	}
	diff += abs(len(or) - len(cr))
	r := float64(diff) / float64(len(or))
	if r > 1.0 {
		r = 1.0
	}
	return r
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
