package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"

	"github.com/minidb/aibridge/internal/config"
	"github.com/minidb/aibridge/internal/nl2sql"
	"github.com/minidb/aibridge/internal/observability"
)

const (
	msgNotFound         = "not found"
	msgMethodNotAllowed = "method not allowed"
	msgUnavailable      = "AIHelper not available"
	msgInvalidJSON      = "invalid json"
	msgEmptyPrompt      = "empty prompt"
	msgBodyTooLarge     = "request body too large"
	msgBusy             = "server busy"
)

var errTranslatorUnavailable = errors.New(msgUnavailable)

// chatRequest is the request schema. A prompt that is absent, null or not
// a string decodes as empty instead of failing the whole body.
type chatRequest struct {
	Prompt promptField `json:"prompt"`
}

type promptField string

func (p *promptField) UnmarshalJSON(raw []byte) error {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		*p = ""
		return nil
	}
	*p = promptField(value)
	return nil
}

type chatResponse struct {
	OK    bool   `json:"ok"`
	Reply string `json:"reply"`
}

type chatEndpoint struct {
	translator   nl2sql.Translator
	logger       *slog.Logger
	failureMode  config.FailureMode
	maxBodyBytes int64
	limiter      *semaphore.Weighted
}

func (c *chatEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}
	if c.translator == nil {
		writeError(w, http.StatusInternalServerError, msgUnavailable)
		return
	}

	body, err := c.readBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	prompt, err := decodePrompt(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		writeError(w, http.StatusBadRequest, msgEmptyPrompt)
		return
	}

	if c.limiter != nil {
		if err := c.limiter.Acquire(r.Context(), 1); err != nil {
			writeError(w, http.StatusServiceUnavailable, msgBusy)
			return
		}
		defer c.limiter.Release(1)
	}

	observability.ObservePromptChars(utf8.RuneCountInString(prompt))
	done := observability.TrackInFlight()
	start := time.Now()
	reply, err := callTranslator(r.Context(), c.translator, prompt)
	elapsed := time.Since(start)
	done()

	switch {
	case err == nil:
		observability.ObserveTranslation(observability.OutcomeOK, elapsed)
		c.log(r.Context(), slog.LevelInfo, "translation completed", prompt, elapsed, nil,
			slog.String("provider", reply.Provider), slog.String("model", reply.Model))
		writeJSON(w, http.StatusOK, chatResponse{OK: true, Reply: reply.Text})
	case nl2sql.IsUpstream(err):
		observability.ObserveTranslation(observability.OutcomeUpstreamError, elapsed)
		c.log(r.Context(), slog.LevelWarn, "completion api failed", prompt, elapsed, err)
		if c.failureMode == config.FailureModeStrict {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, chatResponse{OK: true, Reply: nl2sql.Diagnostic(err)})
	default:
		outcome := observability.OutcomeError
		var p *panicError
		if errors.As(err, &p) {
			outcome = observability.OutcomePanic
		}
		observability.ObserveTranslation(outcome, elapsed)
		c.log(r.Context(), slog.LevelError, "translation failed", prompt, elapsed, err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (c *chatEndpoint) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	reader := io.Reader(r.Body)
	if c.maxBodyBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, c.maxBodyBytes)
	}
	return io.ReadAll(reader)
}

func (c *chatEndpoint) log(ctx context.Context, level slog.Level, msg, prompt string, elapsed time.Duration, err error, extra ...slog.Attr) {
	if c.logger == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.Int("prompt_chars", utf8.RuneCountInString(prompt)),
		slog.String("duration", elapsed.String()),
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	attrs = append(attrs, extra...)
	c.logger.LogAttrs(ctx, level, msg, attrs...)
}

// decodePrompt accepts an empty body as {}. Anything other than a single
// JSON object or null is rejected.
func decodePrompt(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", nil
	}
	if !utf8.Valid(trimmed) {
		return "", errors.New("body is not valid utf-8")
	}
	var req chatRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return "", err
	}
	return string(req.Prompt), nil
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprint(e.value)
}

func callTranslator(ctx context.Context, translator nl2sql.Translator, prompt string) (reply nl2sql.Reply, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &panicError{value: recovered}
		}
	}()
	return translator.Translate(ctx, prompt)
}
