package hybrid

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lexsuite/lexocr/internal/engine"
)

type stubEngine struct {
	name  string
	text  string
	conf  float64
	err   error
	calls int
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) HealthCheck(context.Context) error { return nil }

func (s *stubEngine) Recognize(_ context.Context, _ []byte) (*engine.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &engine.Result{Text: s.text, Confidence: s.conf, Engine: s.name}, nil
}

const goodText = "Le présent contrat est conclu entre les parties désignées ci-dessous."

func TestFastResultAccepted(t *testing.T) {
	fast := &stubEngine{name: "tesseract", text: goodText, conf: 0.91}
	robust := &stubEngine{name: "easyocr", text: "should not be used", conf: 0.90}
	o := New(fast, robust)

	res, err := o.ProcessPage(context.Background(), 1, []byte("png"))
	if err != nil {
		t.Fatal(err)
	}
	if res.EngineUsed != "tesseract" {
		t.Errorf("EngineUsed = %q, want tesseract", res.EngineUsed)
	}
	if res.Text != goodText {
		t.Errorf("Text = %q, want fast engine text", res.Text)
	}
	if robust.calls != 0 {
		t.Errorf("robust engine called %d times, want 0", robust.calls)
	}
}

func TestLowConfidenceFallsBack(t *testing.T) {
	fast := &stubEngine{name: "tesseract", text: goodText, conf: 0.60}
	robust := &stubEngine{name: "easyocr", text: "texte reconnu par le service distant", conf: 0.90}
	o := New(fast, robust)

	res, err := o.ProcessPage(context.Background(), 2, []byte("png"))
	if err != nil {
		t.Fatal(err)
	}
	if res.EngineUsed != "easyocr" {
		t.Errorf("EngineUsed = %q, want easyocr", res.EngineUsed)
	}
	if res.Confidence != 0.90 {
		t.Errorf("Confidence = %v, want assumed 0.90", res.Confidence)
	}
}

func TestShortTextFallsBackDespiteHighConfidence(t *testing.T) {
	fast := &stubEngine{name: "tesseract", text: "Art. 3", conf: 0.99}
	robust := &stubEngine{name: "easyocr", text: goodText, conf: 0.90}
	o := New(fast, robust)

	res, err := o.ProcessPage(context.Background(), 1, []byte("png"))
	if err != nil {
		t.Fatal(err)
	}
	if res.EngineUsed != "easyocr" {
		t.Errorf("EngineUsed = %q, want easyocr for short fast text", res.EngineUsed)
	}
}

func TestAcceptanceBoundary(t *testing.T) {
	longEnough := strings.Repeat("a", 21)
	cases := []struct {
		name string
		text string
		conf float64
		want bool
	}{
		{"at confidence threshold", longEnough, 0.75, true},
		{"below confidence threshold", longEnough, 0.7499, false},
		{"exactly 20 runes", strings.Repeat("a", 20), 0.99, false},
		{"21 runes", longEnough, 0.99, true},
		{"accented runes counted as one", strings.Repeat("é", 21), 0.99, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := accepted(&engine.Result{Text: tc.text, Confidence: tc.conf})
			if got != tc.want {
				t.Errorf("accepted(conf=%v, len=%d) = %v, want %v",
					tc.conf, len([]rune(tc.text)), got, tc.want)
			}
		})
	}
}

func TestRobustFailureResolvesUnreadablePage(t *testing.T) {
	fast := &stubEngine{name: "tesseract", text: goodText, conf: 0.50}
	robust := &stubEngine{name: "easyocr", err: fmt.Errorf("connection refused")}
	o := New(fast, robust)

	res, err := o.ProcessPage(context.Background(), 1, []byte("png"))
	if err != nil {
		t.Fatal(err)
	}
	if res.EngineUsed != EngineNone {
		t.Errorf("EngineUsed = %q, want %q", res.EngineUsed, EngineNone)
	}
	if res.Text != "" {
		t.Errorf("Text = %q, rejected fast text must be discarded", res.Text)
	}
	if res.Warning == "" {
		t.Error("expected an unreadable-page warning")
	}
}

func TestRejectedFastTextDiscardedWhenRobustBlank(t *testing.T) {
	// Sub-threshold fast text plus an empty fallback answer must
	// resolve as an unreadable page, not surface the rejected text.
	fast := &stubEngine{name: "tesseract", text: "short low-conf garbage text", conf: 0.30}
	robust := &stubEngine{name: "easyocr", text: "", conf: 0.90}
	o := New(fast, robust)

	res, err := o.ProcessPage(context.Background(), 1, []byte("png"))
	if err != nil {
		t.Fatal(err)
	}
	if res.EngineUsed != EngineNone {
		t.Errorf("EngineUsed = %q, want %q", res.EngineUsed, EngineNone)
	}
	if res.Text != "" {
		t.Errorf("Text = %q, want empty", res.Text)
	}
	if res.Warning == "" {
		t.Error("expected an unreadable-page warning")
	}
	if robust.calls != 1 {
		t.Errorf("robust engine called %d times, want 1", robust.calls)
	}
}

func TestRobustWhitespaceOnlyIsBlank(t *testing.T) {
	fast := &stubEngine{name: "tesseract", text: "", conf: 0}
	robust := &stubEngine{name: "easyocr", text: " \n\t ", conf: 0.90}
	o := New(fast, robust)

	res, err := o.ProcessPage(context.Background(), 1, []byte("png"))
	if err != nil {
		t.Fatal(err)
	}
	if res.EngineUsed != EngineNone || res.Text != "" {
		t.Errorf("result = %+v, want unreadable page", res)
	}
}

func TestBothBlankIsWarningNotError(t *testing.T) {
	fast := &stubEngine{name: "tesseract", text: "", conf: 0}
	robust := &stubEngine{name: "easyocr", text: "", conf: 0.90}
	o := New(fast, robust)

	res, err := o.ProcessPage(context.Background(), 4, []byte("png"))
	if err != nil {
		t.Fatalf("blank page returned error: %v", err)
	}
	if res.EngineUsed != EngineNone {
		t.Errorf("EngineUsed = %q, want %q", res.EngineUsed, EngineNone)
	}
	if res.Warning == "" {
		t.Error("blank page produced no warning")
	}
	if res.Page != 4 {
		t.Errorf("Page = %d, want 4", res.Page)
	}
}

func TestNilRobustResolvesRejectedFastAsUnreadable(t *testing.T) {
	fast := &stubEngine{name: "tesseract", text: goodText, conf: 0.40}
	o := New(fast, nil)

	res, err := o.ProcessPage(context.Background(), 1, []byte("png"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "" || res.EngineUsed != EngineNone {
		t.Errorf("result = %+v, want unreadable page with no fallback configured", res)
	}
	if res.Warning == "" {
		t.Error("expected an unreadable-page warning")
	}
}

func TestCancelledContext(t *testing.T) {
	fast := &stubEngine{name: "tesseract", err: context.Canceled}
	o := New(fast, nil, WithPageTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.ProcessPage(ctx, 1, []byte("png"))
	if err == nil {
		t.Fatal("expected context error")
	}
}
