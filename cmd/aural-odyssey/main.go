package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/aural-odyssey/internal/api"
	"github.com/dgnsrekt/aural-odyssey/internal/assistant"
	"github.com/dgnsrekt/aural-odyssey/internal/config"
	"github.com/dgnsrekt/aural-odyssey/internal/logging"
	"github.com/dgnsrekt/aural-odyssey/internal/metrics"
	"github.com/dgnsrekt/aural-odyssey/internal/narration"
	"github.com/dgnsrekt/aural-odyssey/internal/voices"
)

const version = "0.1.0"

func main() {
	// Load configuration from defaults, CONFIG_FILE and environment
	cfg, err := config.Load()
	if err != nil {
		// Use stderr before logger is initialized
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Initialize structured logger
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting aural-odyssey", "version", version)

	// Warn if bearer token auth is disabled
	if cfg.AuthDisabled() {
		logger.Warn("HTTP bearer authentication is disabled (BEARER_TOKEN is empty)")
	}

	// Log loaded configuration (without sensitive values)
	logger.Info("configuration loaded",
		"log_level", cfg.LogLevel,
		"log_format", cfg.LogFormat,
		"http_port", cfg.HTTPPort,
		"speech_engine", cfg.SpeechEngine,
		"preferences_path", cfg.PreferencesPath,
		"max_text_length", cfg.MaxTextLength,
		"max_upload_bytes", cfg.MaxUploadBytes,
		"metrics_enabled", cfg.MetricsEnabled,
		"assistant_enabled", cfg.AssistantEnabled(),
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	// Voice catalogue and saved preferences
	catalogue, err := cfg.VoiceCatalogue()
	if err != nil {
		logger.Error("invalid voice catalogue", "error", err)
		os.Exit(1)
	}
	store, err := voices.OpenStore(ctx, cfg.PreferencesPath)
	if err != nil {
		logger.Error("failed to open preferences store", "path", cfg.PreferencesPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	resolver := voices.NewResolver(store, catalogue, logger)

	// Speech engine
	engine, closeEngine, err := newSpeechEngine(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize speech engine", "engine", cfg.SpeechEngine, "error", err)
		os.Exit(1)
	}
	defer closeEngine()
	logger.Info("speech engine ready", "engine", engine.Name())

	// One device shared by the story and the responder
	device := narration.NewDevice(engine, logger)

	var recorder *metrics.Recorder
	if cfg.MetricsEnabled {
		recorder = metrics.NewRecorder()
		device.SetMetrics(recorder)
	}

	hub := api.NewHub(logger)
	go hub.Run(ctx)

	device.SetNoticeCallback(func(n narration.Notice) {
		logger.Info("narration notice", "controller", n.Controller, "kind", n.Kind, "reason", n.Reason)
		hub.PublishNotice(n)
	})
	device.SetChangeCallback(hub.PublishSnapshot)

	story := narration.NewController("story", device, resolver, logger)
	responder := narration.NewController("responder", device, resolver, logger)

	deps := api.Deps{
		Story:     story,
		Responder: responder,
		Voices:    resolver,
		Hub:       hub,
	}
	if recorder != nil {
		deps.Metrics = recorder.Handler()
	}

	// Assistant is optional
	if cfg.AssistantEnabled() {
		client, err := assistant.New(assistant.Config{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize assistant", "error", err)
			os.Exit(1)
		}
		deps.Assistant = client
		logger.Info("assistant ready", "model", cfg.LLMModel)
	} else {
		logger.Warn("LLM_API_KEY is not set, assistant routes are disabled")
	}

	// Create and start HTTP server
	server := api.New(cfg, logger, deps)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	story.Close()
	responder.Close()

	logger.Info("shutdown complete")
}
