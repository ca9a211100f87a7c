package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// ContentType is the MIME type of the wire format: one JSON object per line.
const ContentType = "application/x-ndjson"

// Writer serializes events as NDJSON to an underlying stream, flushing after
// each event when the destination supports it.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	flush  func()
	closed bool
}

// NewWriter wraps an io.Writer. If w implements http.Flusher each event is
// flushed immediately so callers see progress as it happens.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w, flush: func() {}}
	if f, ok := w.(http.Flusher); ok {
		sw.flush = f.Flush
	}
	return sw
}

// Write emits a single event as one NDJSON line.
func (w *Writer) Write(ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("stream writer closed")
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := w.w.Write(append(data, '\n')); err != nil {
		w.closed = true
		return fmt.Errorf("write event: %w", err)
	}
	w.flush()
	return nil
}

// Close marks the writer as closed. Further writes fail.
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

// Pump drains events from ch and writes each one, stopping when ch closes,
// the context is cancelled, or a write fails. The producer/consumer split
// over a bounded channel gives natural backpressure if the consumer is slow.
func Pump(ctx context.Context, ch <-chan Event, w *Writer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := w.Write(ev); err != nil {
				return err
			}
		}
	}
}
