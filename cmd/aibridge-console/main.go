package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/minidb/aibridge/internal/cli/console"
	"github.com/minidb/aibridge/internal/config"
	"github.com/minidb/aibridge/internal/nl2sql"
)

func main() {
	if err := config.LoadDotEnv(config.EnvFilePath(os.LookupEnv)); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load env file: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	options := console.Options{
		BaseURL:       strings.TrimSpace(os.Getenv("AIBRIDGE_URL")),
		Timeout:       parseDurationWithDefault(strings.TrimSpace(os.Getenv("AIBRIDGE_CONSOLE_TIMEOUT")), 90*time.Second),
		NewTranslator: localTranslator,
		Stdin:         os.Stdin,
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
	}

	code := console.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}

func localTranslator() (nl2sql.Translator, error) {
	cfg, err := config.LoadFromEnv("aibridge-console")
	if err != nil {
		return nil, err
	}
	return nl2sql.FromConfig(cfg.AI)
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid AIBRIDGE_CONSOLE_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
