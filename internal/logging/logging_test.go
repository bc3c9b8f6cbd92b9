package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestIsValidLogLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "Warn"} {
		if !IsValidLogLevel(lvl) {
			t.Fatalf("expected %q to be valid", lvl)
		}
	}
	if IsValidLogLevel("verbose") {
		t.Fatal("expected verbose to be invalid")
	}
}

func TestBuildLoggerFallsBackToInfo(t *testing.T) {
	logger, err := BuildLogger("nope", "prod")
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	if logger.Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected debug to be disabled")
	}
	if !logger.Core().Enabled(zap.InfoLevel) {
		t.Fatal("expected info to be enabled")
	}
}

func TestRequestLoggerIncludesFormID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := chi.NewRouter()
	r.Use(RequestLogger(zap.New(core)))
	r.Get("/v1/forms/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/forms/abc", nil))

	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["form_id"] != "abc" {
		t.Fatalf("expected form_id abc, got %v", fields["form_id"])
	}
	if fields["status"] != int64(http.StatusNoContent) {
		t.Fatalf("expected status 204, got %v", fields["status"])
	}
}

func TestRecovererReturns500(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := Recoverer(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatal("expected panic to be logged")
	}
}
