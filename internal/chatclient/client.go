// Package chatclient calls a running bridge over HTTP. Client satisfies
// nl2sql.Translator, so callers can swap a local translator for a remote one.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minidb/aibridge/internal/nl2sql"
)

const chatPath = "/ai/chat"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// APIError is a response with "ok": false, or one that could not be read
// as the bridge envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bridge http %d: %s", e.StatusCode, e.Message)
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 90 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: baseURL, httpClient: client}, nil
}

func (c *Client) Translate(ctx context.Context, prompt string) (nl2sql.Reply, error) {
	payload, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nl2sql.Reply{}, fmt.Errorf("marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(payload))
	if err != nil {
		return nl2sql.Reply{}, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nl2sql.Reply{}, fmt.Errorf("request chat: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nl2sql.Reply{}, fmt.Errorf("read chat response body: %w", err)
	}

	var parsed struct {
		OK    bool   `json:"ok"`
		Reply string `json:"reply"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nl2sql.Reply{}, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if !parsed.OK || resp.StatusCode >= 400 {
		message := parsed.Error
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nl2sql.Reply{}, &APIError{StatusCode: resp.StatusCode, Message: message}
	}
	return nl2sql.Reply{Text: parsed.Reply, Provider: "bridge"}, nil
}
