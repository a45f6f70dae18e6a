package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranslatePostsPromptAndReturnsReply(t *testing.T) {
	var gotMethod, gotPath, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotPrompt = body["prompt"]
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"ok":true,"reply":"SELECT 1"}`))
	}))
	defer srv.Close()

	client, err := New(Options{BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	reply, err := client.Translate(context.Background(), "give me one row")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if reply.Text != "SELECT 1" {
		t.Fatalf("reply.Text = %q", reply.Text)
	}
	if gotMethod != http.MethodPost || gotPath != "/ai/chat" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotPrompt != "give me one row" {
		t.Fatalf("prompt = %q", gotPrompt)
	}
}

func TestTranslateReturnsAPIErrorOnErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"ok":false,"error":"AIHelper not available"}`))
	}))
	defer srv.Close()

	client, err := New(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = client.Translate(context.Background(), "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Message != "AIHelper not available" {
		t.Fatalf("apiErr = %#v", apiErr)
	}
}

func TestTranslateReturnsAPIErrorOnNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream proxy error\n"))
	}))
	defer srv.Close()

	client, err := New(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = client.Translate(context.Background(), "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Message != "upstream proxy error" {
		t.Fatalf("Message = %q", apiErr.Message)
	}
}

func TestTranslateReturnsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, err := New(Options{BaseURL: url})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := client.Translate(context.Background(), "x"); err == nil {
		t.Fatal("Translate() expected transport error")
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Options{BaseURL: "  "}); err == nil {
		t.Fatal("New() expected error")
	}
}
