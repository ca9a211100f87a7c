package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireInitRejectsBeforeInitialization(t *testing.T) {
	s := New(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	called := false
	handler := s.requireInit(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/api/extract", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if called {
		t.Error("handler ran before initialization")
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/api/extract", nil))
	if !called {
		t.Error("handler did not run after initialization")
	}
}

func TestRegistryCoversAPI(t *testing.T) {
	s := New(nil, nil, nil)

	paths := make(map[string]bool)
	for _, ep := range s.Registry().Endpoints() {
		method, path, _ := ep.Route()
		paths[method+" "+path] = true
	}

	for _, want := range []string{
		"GET /health",
		"GET /ready",
		"GET /status",
		"POST /api/extract",
		"GET /api/runs",
		"GET /api/runs/{id}",
		"POST /api/runs/{id}/analysis",
	} {
		if !paths[want] {
			t.Errorf("missing route %s", want)
		}
	}
}
