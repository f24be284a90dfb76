package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	logpkg "github.com/kailas-cloud/metalquote/internal/logger"
	chiTransport "github.com/kailas-cloud/metalquote/internal/transport/chi"
)

func TestJSONRecoverer(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/quotes", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"code":"internal_error"`) {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestWideEventMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	var scoped bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped = logpkg.FromContextOr(r.Context(), nil) != nil
		w.Header().Set(chiTransport.HeaderDataSource, "stale")
		w.WriteHeader(http.StatusOK)
	})
	h := chiMiddleware.RequestID(wideEventMiddleware(logger)(inner))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/quotes", nil))

	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if !scoped {
		t.Error("expected a request-scoped logger in context")
	}

	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 canonical log line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["data_source"] != "stale" || fields["path"] != "/v1/quotes" {
		t.Errorf("unexpected fields %v", fields)
	}
	if _, ok := fields["request_id"]; !ok {
		t.Error("expected request_id field")
	}
}
