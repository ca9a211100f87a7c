// Package refine implements the safety-gated grammar correction layer.
// Paragraphs are sent one at a time to a correction backend, and every
// corrected paragraph must pass a validator before it replaces the
// original. A failed backend or a rejected correction degrades to the
// original text; refinement never makes a document worse or fails it.
package refine

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// DefaultParagraphBudget bounds how many paragraphs per document are
// sent to the backend. Long contracts get their opening clauses
// corrected; the rest passes through untouched.
const DefaultParagraphBudget = 5

// minParagraphRunes filters out page markers and stray header lines
// that are not worth a backend round trip.
const minParagraphRunes = 40

var pageMarker = regexp.MustCompile(`^--- Page \d+ ---$`)

// Result is the outcome of refining one document.
type Result struct {
	Original   string   `json:"original"`
	Refined    string   `json:"refined"`
	Changes    []Change `json:"changes"`
	Confidence float64  `json:"confidence"`
	UsedAI     bool     `json:"used_ai"`
}

// Refiner applies paragraph-level corrections under a budget.
type Refiner struct {
	backend Backend
	budget  int
	logger  *slog.Logger
}

// Option configures a Refiner.
type Option func(*Refiner)

// WithBudget overrides the paragraph budget. Zero or negative keeps
// the default.
func WithBudget(n int) Option {
	return func(r *Refiner) {
		if n > 0 {
			r.budget = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Refiner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New builds a Refiner. A nil backend is allowed and turns Refine into
// a passthrough, which is how the pipeline runs when no correction
// backend is configured.
func New(backend Backend, opts ...Option) *Refiner {
	r := &Refiner{
		backend: backend,
		budget:  DefaultParagraphBudget,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refine corrects up to the budgeted number of paragraphs and returns
// the reassembled document. Paragraph boundaries are blank lines and
// are preserved in the output.
func (r *Refiner) Refine(ctx context.Context, text string) Result {
	res := Result{
		Original:   text,
		Refined:    text,
		Confidence: 1.0,
	}
	if r.backend == nil || strings.TrimSpace(text) == "" {
		return res
	}

	paragraphs := strings.Split(text, "\n\n")
	attempted := 0
	confidence := 1.0

	for i, para := range paragraphs {
		if attempted >= r.budget {
			break
		}
		if !eligible(para) {
			continue
		}
		attempted++

		corrected, err := r.backend.Correct(ctx, para)
		if err != nil {
			r.logger.Warn("correction backend failed, keeping original paragraph",
				"backend", r.backend.Name(),
				"paragraph", i,
				"error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		res.UsedAI = true

		if corrected == para {
			continue
		}

		gate := validateCorrection(para, corrected)
		if !gate.OK {
			r.logger.Warn("correction rejected by safety gate",
				"paragraph", i,
				"reason", gate.Reason)
			res.Changes = append(res.Changes, newRejection(i, para, corrected, gate.Reason))
			if rejectedConfidence < confidence {
				confidence = rejectedConfidence
			}
			continue
		}

		change := newChange(i, para, corrected)
		res.Changes = append(res.Changes, change)
		if c := confidenceFor(change.CharDiffRatio); c < confidence {
			confidence = c
		}
		paragraphs[i] = corrected
	}

	res.Refined = strings.Join(paragraphs, "\n\n")
	res.Confidence = confidence
	return res
}

// eligible reports whether a paragraph is worth sending to the
// backend. Page markers and short fragments pass through as is.
func eligible(para string) bool {
	trimmed := strings.TrimSpace(para)
	if trimmed == "" {
		return false
	}
	if pageMarker.MatchString(trimmed) {
		return false
	}
	return len([]rune(trimmed)) >= minParagraphRunes
}
