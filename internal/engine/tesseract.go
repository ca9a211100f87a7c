package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

const (
	// TesseractName is the engine identifier in progress events.
	TesseractName = "tesseract"

	// tesseractPSM treats each page as a single uniform block of text,
	// which matches scanned contract pages better than full layout
	// analysis.
	tesseractPSM = gosseract.PSM_SINGLE_BLOCK
)

// tesseractLanguages covers the corpus: French-first with English
// fallback for mixed-language contracts.
var tesseractLanguages = []string{"fra", "eng"}

// Tesseract runs local tesseract through gosseract. A fresh client is
// created per call because gosseract clients are not safe for
// concurrent use.
type Tesseract struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseract builds the fast-path engine. Extra languages override
// the defaults when provided.
func NewTesseract(languages ...string) *Tesseract {
	langs := tesseractLanguages
	if len(languages) > 0 {
		langs = languages
	}
	return &Tesseract{
		languages:     langs,
		clientFactory: gosseract.NewClient,
	}
}

// Name returns the engine identifier.
func (t *Tesseract) Name() string {
	return TesseractName
}

// HealthCheck verifies a tesseract client can be constructed with the
// configured languages.
func (t *Tesseract) HealthCheck(_ context.Context) error {
	c := t.clientFactory()
	defer c.Close()
	if err := c.SetLanguage(t.languages...); err != nil {
		return fmt.Errorf("tesseract language data unavailable: %w", err)
	}
	return nil
}

// Recognize preprocesses the page and runs tesseract on it. The mean
// word confidence from the bounding boxes becomes the result
// confidence.
func (t *Tesseract) Recognize(ctx context.Context, pngData []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	prepared, err := PreprocessPNG(pngData)
	if err != nil {
		return nil, err
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(tesseractPSM); err != nil {
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := c.SetImageFromBytes(prepared); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	return &Result{
		Text:       strings.TrimSpace(text),
		Confidence: meanWordConfidence(c),
		Engine:     TesseractName,
		Duration:   time.Since(start),
	}, nil
}

// meanWordConfidence averages per-word confidences, scaled to [0,1].
// Pages with no recognized words score zero.
func meanWordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes))
}
