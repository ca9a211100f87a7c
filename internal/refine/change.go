package refine

import "strings"

// Severity classifies how invasive an accepted correction was.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Change records one paragraph-level correction attempt, whether it was
// applied or rejected by the safety gate.
type Change struct {
	Paragraph       int     `json:"paragraph"`
	Severity        string  `json:"severity,omitempty"`
	CharDiffRatio   float64 `json:"char_diff_ratio"`
	WordDelta       int     `json:"word_delta"`
	PunctDelta      int     `json:"punct_delta"`
	Sample          string  `json:"sample,omitempty"`
	Applied         bool    `json:"applied"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
}

const sampleRunes = 80

// RejectionUnsafeDivergence tags every correction the safety gate
// refuses. The detail after the colon names the check that tripped.
const RejectionUnsafeDivergence = "unsafe_divergence"

// newChange builds the change record for an accepted correction.
func newChange(index int, original, corrected string) Change {
	diff := charDiffRatio(original, corrected)
	return Change{
		Paragraph:     index,
		Severity:      severityFor(diff),
		CharDiffRatio: round3(diff),
		WordDelta:     len(strings.Fields(corrected)) - len(strings.Fields(original)),
		PunctDelta:    countPunct(corrected) - countPunct(original),
		Sample:        truncateRunes(corrected, sampleRunes),
		Applied:       true,
	}
}

// newRejection builds the change record for a correction the safety
// gate refused.
func newRejection(index int, original, corrected, reason string) Change {
	return Change{
		Paragraph:       index,
		CharDiffRatio:   round3(charDiffRatio(original, corrected)),
		WordDelta:       len(strings.Fields(corrected)) - len(strings.Fields(original)),
		PunctDelta:      countPunct(corrected) - countPunct(original),
		Applied:         false,
		RejectionReason: RejectionUnsafeDivergence + ": " + reason,
	}
}

func severityFor(diff float64) string {
	switch {
	case diff > 0.10:
		return SeverityHigh
	case diff > 0.05:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// confidenceFor maps the size of an applied change to a confidence
// band. Rejected corrections are scored separately.
func confidenceFor(diff float64) float64 {
	switch {
	case diff == 0:
		return 1.0
	case diff < 0.02:
		return 0.8
	case diff < 0.05:
		return 0.7
	case diff < 0.10:
		return 0.6
	default:
		return 0.5
	}
}

// rejectedConfidence applies when a correction was attempted but the
// safety gate kept the original text.
const rejectedConfidence = 0.3

func countPunct(s string) int {
	n := 0
	for _, r := range s {
		switch r {
		case '.', ',', ';', ':', '!', '?', '(', ')', '"', '\'':
			n++
		}
	}
	return n
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}
