package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/minidb/aibridge/internal/config"
)

func TestTraceMiddlewarePreservesIncomingTraceID(t *testing.T) {
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := TraceIDFromContext(r.Context()); got != "trace-1" {
			t.Fatalf("TraceIDFromContext() = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/ai/chat", nil)
	req.Header.Set(traceHeader, "trace-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(traceHeader); got != "trace-1" {
		t.Fatalf("trace header = %q", got)
	}
}

func TestTraceMiddlewareGeneratesTraceID(t *testing.T) {
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if TraceIDFromContext(r.Context()) == "" {
			t.Fatal("expected generated trace id")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ai/chat", nil))

	if len(rr.Header().Get(traceHeader)) != 32 {
		t.Fatalf("X-Trace-ID = %q", rr.Header().Get(traceHeader))
	}
}

func TestTraceIDContextHelpers(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "abc123")
	if got := TraceIDFromContext(ctx); got != "abc123" {
		t.Fatalf("TraceIDFromContext() = %q", got)
	}
	if got := TraceIDFromContext(context.Background()); got != "" {
		t.Fatalf("TraceIDFromContext() = %q, want empty", got)
	}
}

func TestLoggingMiddlewareRecordsStatusAndBytes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("12345"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/ai/chat", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "http_request" {
		t.Fatalf("msg = %v", entry["msg"])
	}
	if entry["status"] != float64(http.StatusBadRequest) {
		t.Fatalf("status = %v", entry["status"])
	}
	if entry["bytes"] != float64(5) {
		t.Fatalf("bytes = %v", entry["bytes"])
	}
	if entry["path"] != "/ai/chat" {
		t.Fatalf("path = %v", entry["path"])
	}
}

func TestMetricsMiddlewareUsesRouteLabel(t *testing.T) {
	h := MetricsMiddleware(func(*http.Request) string { return "other" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "other", "404")
	before := testutil.ToFloat64(counter)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/anything/at/all", nil))
	if after := testutil.ToFloat64(counter); after != before+1 {
		t.Fatalf("counter = %f, want %f", after, before+1)
	}
}

func TestMetricsMiddlewareDefaultsToPath(t *testing.T) {
	h := MetricsMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200")
	before := testutil.ToFloat64(counter)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if after := testutil.ToFloat64(counter); after != before+1 {
		t.Fatalf("counter = %f, want %f", after, before+1)
	}
}

func TestNewLoggerAddsServiceAttributes(t *testing.T) {
	cfg := config.Config{
		Profile:       config.ProfileTest,
		Service:       config.ServiceConfig{Name: "aibridge"},
		AI:            config.AIConfig{Provider: config.ProviderMock},
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelInfo, LogJSON: true},
	}
	var buf bytes.Buffer
	NewLogger(cfg, &buf).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry: %v", err)
	}
	if entry["service"] != "aibridge" || entry["profile"] != "test" || entry["ai_provider"] != "mock" {
		t.Fatalf("entry = %#v", entry)
	}
}

func TestNewLoggerRespectsLevelAndNilWriter(t *testing.T) {
	cfg := config.Config{Observability: config.ObservabilityConfig{LogLevel: slog.LevelWarn}}
	var buf bytes.Buffer
	logger := NewLogger(cfg, &buf)
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}
	NewLogger(cfg, nil).Error("discarded")
	NewLogger(config.Config{}, io.Discard).Info("discarded")
}
