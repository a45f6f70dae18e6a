package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"

	"github.com/minidb/aibridge/internal/config"
	"github.com/minidb/aibridge/internal/nl2sql"
	"github.com/minidb/aibridge/internal/observability"
)

const ChatPath = "/ai/chat"

type ReadinessCheck func(ctx context.Context) error

// Dependencies are owned by the caller and injected once. A nil Translator
// means it failed to initialize and the chat route is unavailable for the
// life of the handler.
type Dependencies struct {
	Logger           *slog.Logger
	Translator       nl2sql.Translator
	Readiness        ReadinessCheck
	DependencyTimout time.Duration
}

// NewHandler serves the single chat route. Every other path answers 404.
func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	chat := &chatEndpoint{
		translator:   deps.Translator,
		logger:       deps.Logger,
		failureMode:  cfg.AI.FailureMode,
		maxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}
	if cfg.HTTP.MaxInFlight > 0 {
		chat.limiter = semaphore.NewWeighted(int64(cfg.HTTP.MaxInFlight))
	}

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ChatPath {
			writeError(w, http.StatusNotFound, msgNotFound)
			return
		}
		chat.ServeHTTP(w, r)
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware(chatRouteLabel),
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(root, middlewares...)
}

// NewAdminHandler serves health, readiness and metrics on a listener kept
// apart from the chat route.
func NewAdminHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	return chain(mux, observability.TraceMiddleware, observability.MetricsMiddleware(adminRouteLabel))
}

// TranslatorReadiness fails while the translator is unavailable.
func TranslatorReadiness(translator nl2sql.Translator) ReadinessCheck {
	return func(_ context.Context) error {
		if translator == nil {
			return errTranslatorUnavailable
		}
		return nil
	}
}

func chatRouteLabel(r *http.Request) string {
	if r.URL.Path == ChatPath {
		return ChatPath
	}
	return "other"
}

func adminRouteLabel(r *http.Request) string {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics":
		return r.URL.Path
	}
	return "other"
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

// writeJSON sends payload with an exact Content-Length. HTML characters are
// left unescaped so SQL comparisons survive as written.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		buf.Reset()
		buf.WriteString(`{"ok":false,"error":"encode response"}`)
		status = http.StatusInternalServerError
	}
	body := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{OK: false, Error: message})
}
