// Package extract drives a full document run: validation, page
// rendering, hybrid OCR across a worker pool, then the normalization
// and refinement stages. Progress is reported as a stream of typed
// events in strict page order, regardless of the order pages finish
// in.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lexsuite/lexocr/internal/hybrid"
	"github.com/lexsuite/lexocr/internal/normalize"
	"github.com/lexsuite/lexocr/internal/refine"
	"github.com/lexsuite/lexocr/internal/render"
	"github.com/lexsuite/lexocr/internal/stream"
	"github.com/lexsuite/lexocr/internal/validate"
)

// previewRunes bounds the text excerpt carried on page_done events.
const previewRunes = 120

// SourceText marks pages that bypassed OCR via the plain-text path.
const SourceText = "text"

// PageRecord is the persisted outcome of one page.
type PageRecord struct {
	Page       int     `json:"page"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	EngineUsed string  `json:"engine_used"`
	DurationMs int64   `json:"duration_ms"`
	Warning    string  `json:"warning,omitempty"`
}

// RunResult is the complete outcome of an extraction run.
type RunResult struct {
	RunID       string           `json:"run_id"`
	Path        string           `json:"path"`
	MIME        string           `json:"mime"`
	TotalPages  int              `json:"total_pages"`
	Pages       []PageRecord     `json:"pages"`
	RawText     string           `json:"raw_text"`
	Cleanup     normalize.Result `json:"cleanup"`
	Refinement  *refine.Result   `json:"refinement,omitempty"`
	FinalText   string           `json:"final_text"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Pipeline runs extractions. Construct once, run many.
type Pipeline struct {
	orchestrator *hybrid.Orchestrator
	refiner      *refine.Refiner
	workers      int
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers bounds the page worker pool.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New builds a Pipeline. The refiner may be nil to skip the grammar
// correction stage entirely.
func New(orch *hybrid.Orchestrator, refiner *refine.Refiner, opts ...Option) *Pipeline {
	p := &Pipeline{
		orchestrator: orch,
		refiner:      refiner,
		workers:      runtime.NumCPU(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes one document and emits progress events to the given
// channel. The channel is not closed by Run; ownership stays with the
// caller. On terminal failure the last emitted event is an error event
// and the returned error is non-nil.
func (p *Pipeline) Run(ctx context.Context, path string, events chan<- stream.Event) (*RunResult, error) {
	res := &RunResult{
		RunID:     uuid.NewString(),
		Path:      path,
		StartedAt: time.Now(),
	}
	log := p.logger.With("run_id", res.RunID)

	info, err := validate.File(path)
	if err != nil {
		p.emit(ctx, events, stream.Error(err, "input validation failed"))
		return nil, err
	}
	res.MIME = info.MIME

	doc, err := openDocument(path, info.MIME)
	if err != nil {
		p.emit(ctx, events, stream.Error(err, "could not open document"))
		return nil, err
	}
	res.TotalPages = doc.PageCount()

	p.emit(ctx, events, stream.Init(res.TotalPages,
		fmt.Sprintf("processing %d page(s)", res.TotalPages)))
	log.Info("extraction started", "path", path, "mime", info.MIME, "pages", res.TotalPages)

	if doc.Kind() == render.KindText {
		err = p.runTextPath(ctx, doc, res, events)
	} else {
		err = p.runOCR(ctx, doc, res, events)
	}
	if err != nil {
		return nil, err
	}

	if err := p.runStages(ctx, res, events); err != nil {
		return nil, err
	}

	// The document text the stream reports is the cleaned (and, when
	// configured, refined) text, not the raw engine output.
	p.emit(ctx, events, stream.OCRComplete(res.FinalText, "text extraction complete"))

	res.CompletedAt = time.Now()
	p.emit(ctx, events, stream.Complete("extraction complete"))
	log.Info("extraction complete",
		"pages", res.TotalPages,
		"chars", len(res.FinalText),
		"duration", res.CompletedAt.Sub(res.StartedAt))
	return res, nil
}

// runTextPath handles plain-text inputs, which skip recognition.
func (p *Pipeline) runTextPath(ctx context.Context, doc document, res *RunResult, events chan<- stream.Event) error {
	text, err := doc.Text()
	if err != nil {
		p.emit(ctx, events, stream.Error(err, "could not read text document"))
		return err
	}
	if strings.TrimSpace(text) == "" {
		err := fmt.Errorf("document contains no text")
		p.emit(ctx, events, stream.Error(err, "no usable text in document"))
		return err
	}

	p.emit(ctx, events, stream.PageStart(1, 1, "reading text document"))
	p.emit(ctx, events, stream.PageDone(1, preview(text), SourceText, 1.0, 0, "text read directly"))

	res.Pages = []PageRecord{{Page: 1, Text: text, Confidence: 1.0, EngineUsed: SourceText}}
	res.RawText = text
	return nil
}

// document is the view of a rendered source the pipeline consumes.
// Satisfied by *render.Document; swappable in tests.
type document interface {
	Kind() render.Kind
	PageCount() int
	RenderPage(ctx context.Context, page int) ([]byte, error)
	Text() (string, error)
}

var openDocument = func(path, mime string) (document, error) {
	return render.Open(path, mime)
}

type pageOutcome struct {
	record PageRecord
	err    error
}

// runOCR fans pages out to the worker pool and emits their events in
// strict page order.
func (p *Pipeline) runOCR(ctx context.Context, doc document, res *RunResult, events chan<- stream.Event) error {
	total := doc.PageCount()
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int, total)
	results := make(chan pageOutcome, total)
	workers := p.workers
	if workers > total {
		workers = total
	}

	for w := 0; w < workers; w++ {
		go p.pageWorker(workCtx, doc, jobs, results)
	}
	for page := 1; page <= total; page++ {
		jobs <- page
	}
	close(jobs)

	pending := make(map[int]pageOutcome, total)
	records := make([]PageRecord, 0, total)

	for next := 1; next <= total; next++ {
		p.emit(ctx, events, stream.PageStart(next, total, fmt.Sprintf("processing page %d/%d", next, total)))

		outcome, ok := pending[next]
		for !ok {
			select {
			case <-ctx.Done():
				p.emit(ctx, events, stream.Error(ctx.Err(), "extraction cancelled"))
				return ctx.Err()
			case got := <-results:
				pending[got.record.Page] = got
				outcome, ok = pending[next]
			}
		}
		delete(pending, next)

		if outcome.err != nil {
			// A page that cannot be rendered means the file itself is
			// bad; stop the run.
			cancel()
			p.emit(ctx, events, stream.Error(outcome.err, fmt.Sprintf("page %d failed", next)))
			return outcome.err
		}

		rec := outcome.record
		records = append(records, rec)
		// Exactly one of page_done or page_warning per page. A warning
		// record carries no text.
		if rec.Warning != "" {
			p.emit(ctx, events, stream.PageWarning(rec.Page, rec.Warning))
			continue
		}
		p.emit(ctx, events, stream.PageDone(rec.Page, preview(rec.Text), rec.EngineUsed,
			rec.Confidence, rec.DurationMs, fmt.Sprintf("page %d/%d done", rec.Page, total)))
	}

	res.Pages = records
	res.RawText = assemble(records)
	if res.RawText == "" {
		err := fmt.Errorf("no usable text extracted from any page")
		p.emit(ctx, events, stream.Error(err, "document yielded no text"))
		return err
	}
	return nil
}

func (p *Pipeline) pageWorker(ctx context.Context, doc document, jobs <-chan int, results chan<- pageOutcome) {
	for page := range jobs {
		if ctx.Err() != nil {
			results <- pageOutcome{record: PageRecord{Page: page}, err: ctx.Err()}
			continue
		}
		png, err := doc.RenderPage(ctx, page)
		if err != nil {
			results <- pageOutcome{record: PageRecord{Page: page}, err: err}
			continue
		}
		pr, err := p.orchestrator.ProcessPage(ctx, page, png)
		if err != nil {
			results <- pageOutcome{record: PageRecord{Page: page}, err: err}
			continue
		}
		results <- pageOutcome{record: PageRecord{
			Page:       pr.Page,
			Text:       pr.Text,
			Confidence: pr.Confidence,
			EngineUsed: pr.EngineUsed,
			DurationMs: pr.Duration.Milliseconds(),
			Warning:    pr.Warning,
		}}
	}
}

// runStages applies normalization and, when configured, refinement.
func (p *Pipeline) runStages(ctx context.Context, res *RunResult, events chan<- stream.Event) error {
	p.emit(ctx, events, stream.Stage("normalize", "cleaning recognized text"))
	res.Cleanup = normalize.Normalize(res.RawText)
	res.FinalText = res.Cleanup.Cleaned

	if p.refiner != nil {
		p.emit(ctx, events, stream.Stage("refine", "applying grammar corrections"))
		refined := p.refiner.Refine(ctx, res.FinalText)
		res.Refinement = &refined
		res.FinalText = refined.Refined
	}

	if err := ctx.Err(); err != nil {
		p.emit(ctx, events, stream.Error(err, "extraction cancelled"))
		return err
	}
	return nil
}

// assemble joins per-page text into one document with page markers,
// skipping pages that produced nothing.
func assemble(records []PageRecord) string {
	var b strings.Builder
	for _, rec := range records {
		if strings.TrimSpace(rec.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", rec.Page, rec.Text)
	}
	return b.String()
}

func preview(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) <= previewRunes {
		return string(r)
	}
	return string(r[:previewRunes]) + "…"
}

// emit sends one event unless the context is already done. Event loss
// on cancellation is fine: the consumer is gone.
func (p *Pipeline) emit(ctx context.Context, events chan<- stream.Event, ev stream.Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
