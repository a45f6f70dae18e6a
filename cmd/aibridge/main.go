package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minidb/aibridge/internal/api"
	"github.com/minidb/aibridge/internal/config"
	"github.com/minidb/aibridge/internal/nl2sql"
	"github.com/minidb/aibridge/internal/observability"
)

func main() {
	if err := config.LoadDotEnv(config.EnvFilePath(os.LookupEnv)); err != nil {
		slog.Error("failed to load env file", slog.Any("error", err))
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv("aibridge")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if len(os.Args) > 1 {
		config.ApplyListenArg(&cfg, os.Args[1])
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	// A translator that fails to build leaves the bridge up and answering
	// "AIHelper not available".
	translator, err := nl2sql.FromConfig(cfg.AI)
	if err != nil {
		logger.Error("failed to initialize translator", slog.Any("error", err))
	}
	observability.SetTranslatorAvailable(translator != nil)

	deps := api.Dependencies{
		Logger:           logger,
		Translator:       translator,
		Readiness:        api.TranslatorReadiness(translator),
		DependencyTimout: time.Second,
	}

	servers := []*http.Server{{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}}
	if cfg.Admin.Address != "" {
		servers = append(servers, &http.Server{
			Addr:        cfg.Admin.Address,
			Handler:     api.NewAdminHandler(cfg, deps),
			ReadTimeout: 5 * time.Second,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, server := range servers {
		go func(server *http.Server) {
			logger.Info("starting server", slog.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server failed", slog.String("addr", server.Addr), slog.Any("error", err))
				stop()
			}
		}(server)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down")
	failed := false
	for _, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.String("addr", server.Addr), slog.Any("error", err))
			_ = server.Close()
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}
