package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

type fakeTranslator struct {
	reply Reply
	err   error
}

func (f fakeTranslator) Translate(context.Context, string) (Reply, error) {
	return f.reply, f.err
}

func TestDiagnosticFormatsAsSQLComment(t *testing.T) {
	got := Diagnostic(errors.New("connection refused"))
	if got != "-- AI call failed: connection refused" {
		t.Fatalf("Diagnostic() = %q", got)
	}
	if !strings.HasPrefix(Diagnostic(nil), DiagnosticPrefix) {
		t.Fatalf("Diagnostic(nil) = %q", Diagnostic(nil))
	}
}

func TestTranslateTextNeverFails(t *testing.T) {
	ok := fakeTranslator{reply: Reply{Text: "SELECT 1"}}
	if got := TranslateText(context.Background(), ok, "one"); got != "SELECT 1" {
		t.Fatalf("TranslateText() = %q", got)
	}

	failing := fakeTranslator{err: &UpstreamError{Provider: "openai-compatible", StatusCode: 429, Err: errors.New("quota exceeded")}}
	got := TranslateText(context.Background(), failing, "one")
	if got != "-- AI call failed: openai-compatible: quota exceeded" {
		t.Fatalf("TranslateText() = %q", got)
	}
}

func TestIsUpstreamFollowsWrapping(t *testing.T) {
	wrapped := fmt.Errorf("translate: %w", &UpstreamError{Provider: "p", Err: errors.New("boom")})
	if !IsUpstream(wrapped) {
		t.Fatal("IsUpstream() = false for wrapped upstream error")
	}
	if IsUpstream(errors.New("plain")) {
		t.Fatal("IsUpstream() = true for plain error")
	}
	inner := errors.New("boom")
	if !errors.Is(&UpstreamError{Provider: "p", Err: inner}, inner) {
		t.Fatal("UpstreamError does not unwrap")
	}
}

func TestMockTranslator(t *testing.T) {
	m := &MockTranslator{}
	reply, err := m.Translate(context.Background(), "  count   the orders ")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if reply.Text != "SELECT 1; /* count the orders */" {
		t.Fatalf("reply.Text = %q", reply.Text)
	}
	if reply.Provider != "mock" {
		t.Fatalf("reply.Provider = %q", reply.Provider)
	}

	reply, err = m.Translate(context.Background(), "close */ early")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if strings.Count(reply.Text, "*/") != 1 {
		t.Fatalf("reply.Text = %q", reply.Text)
	}
}

func TestMockTranslatorHonoursCancellation(t *testing.T) {
	m := &MockTranslator{Delay: 5 * time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Translate(ctx, "hello"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Translate() error = %v, want context.Canceled", err)
	}
}
