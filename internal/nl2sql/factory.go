package nl2sql

import (
	"fmt"

	"github.com/minidb/aibridge/internal/config"
)

// FromConfig builds the translator selected by cfg.Provider. Settings that
// failed to parse are reported here.
func FromConfig(cfg config.AIConfig) (Translator, error) {
	if cfg.Invalid != nil {
		return nil, fmt.Errorf("translator config: %w", cfg.Invalid)
	}
	switch cfg.Provider {
	case config.ProviderMock:
		return &MockTranslator{}, nil
	case config.ProviderOpenAI, "":
		translator, err := NewOpenAITranslator(OpenAIConfig{
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			Temperature:  cfg.Temperature,
			Timeout:      cfg.Timeout,
			SystemPrompt: cfg.SystemPrompt,
			StripFences:  cfg.StripFences,
		})
		if err != nil {
			return nil, fmt.Errorf("openai translator: %w", err)
		}
		return translator, nil
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", cfg.Provider)
	}
}
