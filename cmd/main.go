package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-transcriber/pkg/api"
	"media-transcriber/pkg/config"
	"media-transcriber/pkg/media"
	"media-transcriber/pkg/pipeline"
	"media-transcriber/pkg/storage"
	"media-transcriber/pkg/transcribe"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize storage
	store, err := storage.Open(cfg.Cache.Backend, cfg.Cache.Dir, logger)
	if err != nil {
		logger.Error("failed to initialize cache storage", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	backend, err := newBackend(cfg.Transcription)
	if err != nil {
		logger.Error("failed to initialize transcription backend", "error", err)
		os.Exit(1)
	}
	logger.Info("transcription backend ready", "backend", backend.Name())

	// Initialize pipeline
	orch := pipeline.NewOrchestrator(
		pipeline.SettingsFrom(cfg.Pipeline, cfg.Transcription),
		store,
		media.NewYTDLP(cfg.YTDLPPath, logger),
		transcribe.NewTranscriber(backend, logger),
		logger,
	)
	manager := pipeline.NewManager(orch, cfg.Jobs, cfg.Pipeline.RequestTimeout, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Start(ctx); err != nil {
		logger.Error("failed to start job manager", "error", err)
		os.Exit(1)
	}
	defer manager.Stop()

	go storage.RunEviction(ctx, store, cfg.Cache.MaxAge, cfg.Cache.CleanupInterval, logger)

	router := api.NewRouter(api.NewHandlers(orch, manager, logger))

	// Start HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			cancel()
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

func newBackend(cfg config.TranscriptionConfig) (transcribe.Backend, error) {
	switch cfg.Backend {
	case "", "deepgram":
		return transcribe.NewDeepgram(transcribe.DeepgramConfig{APIKey: cfg.DeepgramAPIKey, Model: cfg.DeepgramModel})
	case "whisper":
		return transcribe.NewWhisper(transcribe.WhisperConfig{APIKey: cfg.OpenAIAPIKey, Model: cfg.WhisperModel})
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", cfg.Backend)
	}
}
