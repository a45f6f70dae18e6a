package nl2sql

import (
	"context"
	"errors"
	"fmt"
)

// DefaultSystemPrompt fixes the assistant's role for every completion.
const DefaultSystemPrompt = "You are a SQL assistant. Convert the user's natural-language requirement into a standard SQL statement. " +
	"Output only SQL, without explanation. SQL statements must use English keywords and identifiers. " +
	"If the user sends any other kind of conversation, reply in the user's language."

// DiagnosticPrefix marks a reply that carries a failure instead of SQL.
const DiagnosticPrefix = "-- AI call failed: "

type Reply struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, prompt string) (Reply, error)
}

// UpstreamError reports a failed call to the completion API. StatusCode is
// kept for callers and left out of the message; the client errors already
// carry it.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func IsUpstream(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream)
}

// Diagnostic renders err as a SQL comment so it can be shown wherever a
// reply is expected.
func Diagnostic(err error) string {
	if err == nil {
		return DiagnosticPrefix + "unknown error"
	}
	return DiagnosticPrefix + err.Error()
}

// TranslateText never fails: errors come back as Diagnostic text.
func TranslateText(ctx context.Context, t Translator, prompt string) string {
	reply, err := t.Translate(ctx, prompt)
	if err != nil {
		return Diagnostic(err)
	}
	return reply.Text
}
