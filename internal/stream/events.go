// Package stream defines the typed progress events emitted during an
// extraction run and the NDJSON writer that carries them to a caller.
package stream

// EventType discriminates the progress event variants.
type EventType string

const (
	EventInit        EventType = "init"
	EventPageStart   EventType = "page_start"
	EventPageDone    EventType = "page_done"
	EventPageWarning EventType = "page_warning"
	EventStage       EventType = "stage"
	EventOCRComplete EventType = "ocr_complete"
	EventComplete    EventType = "complete"
	EventError       EventType = "error"
)

// Event is one progress milestone. Only the fields relevant to the event
// type are populated; consumers must ignore fields they do not expect.
type Event struct {
	Type EventType `json:"type"`

	// Page context (page_start, page_done, page_warning)
	Page       int `json:"page,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`

	// Human-readable progress line, present on most events.
	Message string `json:"message,omitempty"`

	// page_done payload
	TextPreview string  `json:"text_preview,omitempty"`
	Source      string  `json:"source,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	DurationMs  int64   `json:"duration_ms,omitempty"`

	// stage payload
	Stage string `json:"stage,omitempty"`

	// ocr_complete payload
	FullText string `json:"full_text,omitempty"`

	// error payload
	Error string `json:"error,omitempty"`
}

// Init builds the stream-opening event announcing the page count.
func Init(totalPages int, message string) Event {
	return Event{Type: EventInit, TotalPages: totalPages, Message: message}
}

// PageStart announces that work on a page has begun.
func PageStart(page, totalPages int, message string) Event {
	return Event{Type: EventPageStart, Page: page, TotalPages: totalPages, Message: message}
}

// PageDone reports a successfully extracted page.
func PageDone(page int, preview, source string, confidence float64, durationMs int64, message string) Event {
	return Event{
		Type:        EventPageDone,
		Page:        page,
		TextPreview: preview,
		Source:      source,
		Confidence:  confidence,
		DurationMs:  durationMs,
		Message:     message,
	}
}

// PageWarning reports a page that yielded no usable text. This is not an
// error: blank or unreadable pages are a legitimate outcome.
func PageWarning(page int, message string) Event {
	return Event{Type: EventPageWarning, Page: page, Message: message}
}

// Stage announces a downstream pipeline stage starting.
func Stage(stage, message string) Event {
	return Event{Type: EventStage, Stage: stage, Message: message}
}

// OCRComplete carries the full document text in page order, after the
// cleanup and refinement stages have run.
func OCRComplete(fullText, message string) Event {
	return Event{Type: EventOCRComplete, FullText: fullText, Message: message}
}

// Complete is the success terminal event.
func Complete(message string) Event {
	return Event{Type: EventComplete, Message: message}
}

// Error is the failure terminal event.
func Error(err error, message string) Event {
	e := Event{Type: EventError, Message: message}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
