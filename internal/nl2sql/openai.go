package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const openAIProvider = "openai-compatible"

type OpenAIConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	Temperature  float64
	Timeout      time.Duration
	SystemPrompt string
	StripFences  bool
	HTTPClient   *http.Client
}

type OpenAITranslator struct {
	client       *openai.Client
	model        string
	temperature  float32
	systemPrompt string
	stripFences  bool
}

// NewOpenAITranslator builds a translator for any OpenAI-compatible
// chat-completion endpoint. The API key is not checked here; a bad key
// surfaces as an UpstreamError on the first call.
func NewOpenAITranslator(cfg OpenAIConfig) (*OpenAITranslator, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base URL must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", baseURL)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	systemPrompt := cfg.SystemPrompt
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}

	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	clientCfg.BaseURL = baseURL
	clientCfg.HTTPClient = httpClient

	return &OpenAITranslator{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        model,
		temperature:  float32(cfg.Temperature),
		systemPrompt: systemPrompt,
		stripFences:  cfg.StripFences,
	}, nil
}

// Translate issues exactly one chat completion. The prompt is sent verbatim.
func (t *OpenAITranslator) Translate(ctx context.Context, prompt string) (Reply, error) {
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: t.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: t.temperature,
	})
	if err != nil {
		return Reply{}, &UpstreamError{Provider: openAIProvider, StatusCode: statusCodeOf(err), Err: err}
	}
	if len(resp.Choices) == 0 {
		return Reply{}, &UpstreamError{Provider: openAIProvider, Err: errors.New("empty chat completion choices")}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if t.stripFences {
		text = stripMarkdownSQL(text)
	}
	return Reply{
		Text:     text,
		Provider: openAIProvider,
		Model:    t.model,
	}, nil
}

func statusCodeOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
