// Package hybrid decides, per page, which OCR engine's output to keep.
// The fast local engine runs first; its result is accepted only when
// it clears the confidence and length thresholds. Anything short of
// that falls back to the robust remote engine, whose output is taken
// as is — a rejected fast result is discarded, never kept as a
// runner-up. A page where neither engine produces text is a warning,
// not a failure.
package hybrid

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lexsuite/lexocr/internal/engine"
)

const (
	// minConfidence and minTextRunes form the acceptance rule for the
	// fast engine. Sparse pages (stamps, signatures) produce short
	// high-confidence garbage, hence the length floor.
	minConfidence = 0.75
	minTextRunes  = 20

	// DefaultPageTimeout bounds one page through both engines.
	DefaultPageTimeout = 120 * time.Second

	// EngineNone marks a page where no engine produced text.
	EngineNone = "none"
)

// PageResult is the per-page outcome of the engine selection.
type PageResult struct {
	Page       int
	Text       string
	Confidence float64
	// EngineUsed is the name of the engine whose text was kept, or
	// "none" when the page yielded nothing.
	EngineUsed string
	Duration   time.Duration
	// Warning is set, and Text empty, when the page resolved without
	// any acceptable text.
	Warning string
}

// Orchestrator runs the fast-then-robust selection for single pages.
type Orchestrator struct {
	fast    engine.Engine
	robust  engine.Engine
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPageTimeout overrides the per-page deadline.
func WithPageTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New builds an Orchestrator. The robust engine may be nil, in which
// case a rejected fast result resolves the page as unreadable.
func New(fast, robust engine.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fast:    fast,
		robust:  robust,
		timeout: DefaultPageTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessPage recognizes one PNG-encoded page under the page deadline
// and returns whichever engine's text won. The returned error is
// non-nil only for context cancellation; engine failures degrade.
func (o *Orchestrator) ProcessPage(ctx context.Context, page int, png []byte) (PageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	start := time.Now()

	fastRes, fastErr := o.fast.Recognize(ctx, png)
	if fastErr != nil {
		if ctx.Err() != nil && o.robust == nil {
			return PageResult{}, ctx.Err()
		}
		o.logger.Warn("fast engine failed, falling back",
			"page", page, "engine", o.fast.Name(), "error", fastErr)
	}

	if fastErr == nil && accepted(fastRes) {
		return PageResult{
			Page:       page,
			Text:       fastRes.Text,
			Confidence: fastRes.Confidence,
			EngineUsed: fastRes.Engine,
			Duration:   time.Since(start),
		}, nil
	}

	// From here on the page belongs to the fallback: the rejected fast
	// text is discarded, not kept as a second-best answer.
	if o.robust == nil {
		return o.blankPage(page, start), ctx.Err()
	}

	robustRes, robustErr := o.robust.Recognize(ctx, png)
	if robustErr != nil {
		if ctx.Err() != nil {
			return PageResult{}, ctx.Err()
		}
		o.logger.Warn("robust engine failed, resolving page as unreadable",
			"page", page, "engine", o.robust.Name(), "error", robustErr)
		return o.blankPage(page, start), nil
	}

	if strings.TrimSpace(robustRes.Text) == "" {
		return o.blankPage(page, start), nil
	}

	return PageResult{
		Page:       page,
		Text:       robustRes.Text,
		Confidence: robustRes.Confidence,
		EngineUsed: robustRes.Engine,
		Duration:   time.Since(start),
	}, nil
}

// blankPage resolves a page where no engine produced acceptable text.
func (o *Orchestrator) blankPage(page int, start time.Time) PageResult {
	return PageResult{
		Page:       page,
		EngineUsed: EngineNone,
		Duration:   time.Since(start),
		Warning:    "no text recognized on page",
	}
}

// accepted applies the fast-engine acceptance rule.
func accepted(res *engine.Result) bool {
	return res.Confidence >= minConfidence && len([]rune(res.Text)) > minTextRunes
}
