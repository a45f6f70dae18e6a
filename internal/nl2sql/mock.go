package nl2sql

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MockTranslator answers without calling any completion API. Used for
// development and tests.
type MockTranslator struct {
	Delay time.Duration
}

func (m *MockTranslator) Translate(ctx context.Context, prompt string) (Reply, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return Reply{}, fmt.Errorf("mock: %w", ctx.Err())
		}
	}
	comment := strings.Join(strings.Fields(prompt), " ")
	comment = strings.ReplaceAll(comment, "*/", "* /")
	return Reply{
		Text:     "SELECT 1; /* " + comment + " */",
		Provider: "mock",
		Model:    "mock",
	}, nil
}
