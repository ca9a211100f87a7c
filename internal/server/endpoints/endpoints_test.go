package endpoints

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lexsuite/lexocr/internal/api"
	"github.com/lexsuite/lexocr/internal/audit"
	"github.com/lexsuite/lexocr/internal/engine"
	"github.com/lexsuite/lexocr/internal/extract"
	"github.com/lexsuite/lexocr/internal/home"
	"github.com/lexsuite/lexocr/internal/hybrid"
	"github.com/lexsuite/lexocr/internal/normalize"
	"github.com/lexsuite/lexocr/internal/stream"
	"github.com/lexsuite/lexocr/internal/svcctx"
)

// newTestServer builds an httptest server with the given services
// injected into every request, routed the same way the real server
// routes endpoints.
func newTestServer(t *testing.T, services *svcctx.Services) *httptest.Server {
	t.Helper()
	if services.Logger == nil {
		services.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	registry := api.NewRegistry()
	for _, ep := range All() {
		registry.Register(ep)
	}
	mux := http.NewServeMux()
	registry.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc { return next })

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func openTestStore(t *testing.T) *audit.Store {
	t.Helper()
	store, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open audit store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func storedRun(t *testing.T, store *audit.Store, id string) {
	t.Helper()
	res := &extract.RunResult{
		RunID:      id,
		Path:       "/tmp/bail.pdf",
		MIME:       "application/pdf",
		TotalPages: 1,
		Pages: []extract.PageRecord{
			{Page: 1, Text: "Bail commercial.", Confidence: 0.91, EngineUsed: "tesseract", DurationMs: 120},
		},
		Cleanup: normalize.Result{
			Original:    "Bail  commercial.",
			Cleaned:     "Bail commercial.",
			Corrections: []string{"collapsed repeated whitespace"},
		},
		FinalText:   "Bail commercial.",
		StartedAt:   time.Now().Add(-time.Minute),
		CompletedAt: time.Now(),
	}
	if err := store.RecordRun(context.Background(), res); err != nil {
		t.Fatalf("record run: %v", err)
	}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &svcctx.Services{})

	var body map[string]string
	if code := getJSON(t, srv.URL+"/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("not ready without pipeline", func(t *testing.T) {
		srv := newTestServer(t, &svcctx.Services{})
		if code := getJSON(t, srv.URL+"/ready", nil); code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", code)
		}
	})

	t.Run("ready with pipeline", func(t *testing.T) {
		orch := hybrid.New(stubEngine{name: "tesseract"}, nil)
		srv := newTestServer(t, &svcctx.Services{
			Pipeline: extract.New(orch, nil),
		})
		if code := getJSON(t, srv.URL+"/ready", nil); code != http.StatusOK {
			t.Fatalf("status = %d, want 200", code)
		}
	})
}

func TestStatusEndpoint(t *testing.T) {
	engines := engine.NewRegistry()
	engines.Register("tesseract", stubEngine{name: "tesseract"})
	engines.Register("easyocr", stubEngine{name: "easyocr"})
	srv := newTestServer(t, &svcctx.Services{Engines: engines})

	var body StatusResponse
	if code := getJSON(t, srv.URL+"/status", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(body.Engines) != 2 {
		t.Errorf("engines = %v, want 2 entries", body.Engines)
	}
	if body.OCRService != "" {
		t.Errorf("ocr_service = %q, want empty without a manager", body.OCRService)
	}
}

func TestListRunsEndpoint(t *testing.T) {
	store := openTestStore(t)
	storedRun(t, store, "run-a")
	storedRun(t, store, "run-b")
	srv := newTestServer(t, &svcctx.Services{Audit: store})

	var body map[string][]audit.RunSummary
	if code := getJSON(t, srv.URL+"/api/runs", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if got := len(body["runs"]); got != 2 {
		t.Fatalf("runs = %d, want 2", got)
	}

	t.Run("limit", func(t *testing.T) {
		var limited map[string][]audit.RunSummary
		if code := getJSON(t, srv.URL+"/api/runs?limit=1", &limited); code != http.StatusOK {
			t.Fatalf("status = %d, want 200", code)
		}
		if got := len(limited["runs"]); got != 1 {
			t.Errorf("runs = %d, want 1", got)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		if code := getJSON(t, srv.URL+"/api/runs?limit=zero", nil); code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", code)
		}
	})
}

func TestGetRunEndpoint(t *testing.T) {
	store := openTestStore(t)
	storedRun(t, store, "run-a")
	srv := newTestServer(t, &svcctx.Services{Audit: store})

	var run audit.Run
	if code := getJSON(t, srv.URL+"/api/runs/run-a", &run); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if run.ID != "run-a" || run.FinalText != "Bail commercial." {
		t.Errorf("unexpected run: %+v", run)
	}
	if len(run.Pages) != 1 || run.Pages[0].EngineUsed != "tesseract" {
		t.Errorf("unexpected pages: %+v", run.Pages)
	}

	t.Run("not found", func(t *testing.T) {
		if code := getJSON(t, srv.URL+"/api/runs/missing", nil); code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", code)
		}
	})
}

func TestExtractEndpoint(t *testing.T) {
	store := openTestStore(t)
	homeDir, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home: %v", err)
	}
	orch := hybrid.New(stubEngine{name: "tesseract"}, nil)
	services := &svcctx.Services{
		Pipeline: extract.New(orch, nil),
		Audit:    store,
		Home:     homeDir,
	}
	srv := newTestServer(t, services)

	doc := filepath.Join(t.TempDir(), "contrat.txt")
	if err := os.WriteFile(doc, []byte("Le preneur s'engage à payer le loyer.\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	resp := postFile(t, srv.URL+"/api/extract", doc)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != stream.ContentType {
		t.Errorf("content type = %q, want %q", ct, stream.ContentType)
	}

	events := readEvents(t, resp.Body)
	if len(events) == 0 {
		t.Fatal("no events received")
	}
	last := events[len(events)-1]
	if last.Type != stream.EventComplete {
		t.Fatalf("last event = %s, want complete", last.Type)
	}

	runs, err := store.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("recorded runs = %d, want 1", len(runs))
	}
	if runs[0].MIME != "text/plain" {
		t.Errorf("recorded mime = %q, want text/plain", runs[0].MIME)
	}
}

func TestExtractEndpointRejectsMissingFile(t *testing.T) {
	orch := hybrid.New(stubEngine{name: "tesseract"}, nil)
	srv := newTestServer(t, &svcctx.Services{Pipeline: extract.New(orch, nil)})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/extract", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestExtractEndpointRejectsBadUploadBeforeStreaming(t *testing.T) {
	orch := hybrid.New(stubEngine{name: "tesseract"}, nil)
	srv := newTestServer(t, &svcctx.Services{Pipeline: extract.New(orch, nil)})

	// PNG bytes behind a .pdf name must be refused with a plain 400,
	// not an error event on an NDJSON stream.
	doc := filepath.Join(t.TempDir(), "contrat.pdf")
	if err := os.WriteFile(doc, []byte("\x89PNG\r\n\x1a\nnot a pdf"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	resp := postFile(t, srv.URL+"/api/extract", doc)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct == stream.ContentType {
		t.Errorf("content type = %q, want a JSON error, not a stream", ct)
	}
	var body ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if !strings.Contains(body.Error, "extension_mismatch") {
		t.Errorf("error = %q, want extension_mismatch", body.Error)
	}
}

func postFile(t *testing.T, url, path string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func readEvents(t *testing.T, r io.Reader) []stream.Event {
	t.Helper()
	var events []stream.Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var ev stream.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("malformed event line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan stream: %v", err)
	}
	return events
}

// stubEngine satisfies engine.Engine for wiring tests. It is never
// invoked by the text fast path these tests exercise.
type stubEngine struct {
	name string
}

func (s stubEngine) Name() string { return s.name }

func (s stubEngine) Recognize(ctx context.Context, png []byte) (*engine.Result, error) {
	return &engine.Result{Text: "", Confidence: 0, Engine: s.name}, nil
}

func (s stubEngine) HealthCheck(ctx context.Context) error { return nil }
