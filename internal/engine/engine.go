// Package engine defines the OCR engine contract and its two
// implementations: a local tesseract engine used as the fast path and
// a remote recognition service used as the robust fallback.
package engine

import (
	"context"
	"time"
)

// Result is the outcome of recognizing one page image.
type Result struct {
	// Text is the raw recognized text, trimmed.
	Text string
	// Confidence is the mean word confidence in [0,1]. Engines that do
	// not report confidence use a fixed assumed value.
	Confidence float64
	// Engine is the name of the engine that produced the text.
	Engine string
	// Duration is the wall time of the recognition call.
	Duration time.Duration
}

// Engine recognizes text on a single page image. Input is a PNG-encoded
// page; each engine decides its own preprocessing.
type Engine interface {
	// Name returns the engine identifier used in progress events.
	Name() string
	// Recognize extracts text from one PNG-encoded page image.
	Recognize(ctx context.Context, png []byte) (*Result, error)
	// HealthCheck verifies the engine is usable.
	HealthCheck(ctx context.Context) error
}
