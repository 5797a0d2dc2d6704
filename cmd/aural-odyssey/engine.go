package main

import (
	"fmt"
	"log/slog"

	"github.com/dgnsrekt/aural-odyssey/internal/audio"
	"github.com/dgnsrekt/aural-odyssey/internal/config"
	"github.com/dgnsrekt/aural-odyssey/internal/discord"
	"github.com/dgnsrekt/aural-odyssey/internal/playback"
	"github.com/dgnsrekt/aural-odyssey/internal/queue"
	"github.com/dgnsrekt/aural-odyssey/internal/speech"
	"github.com/dgnsrekt/aural-odyssey/internal/tts"
)

// newSpeechEngine builds the configured engine. The returned function
// releases whatever the engine holds.
func newSpeechEngine(cfg *config.Config, logger *slog.Logger) (speech.Engine, func(), error) {
	switch cfg.SpeechEngine {
	case config.EngineSimulated:
		logger.Warn("using the simulated speech engine, no audio will be produced")
		return speech.NewSimulatedEngine(speech.DefaultWordsPerSecond, logger), func() {}, nil

	case config.EngineExec:
		engine, err := speech.NewExecEngine(speech.ExecConfig{
			Command:       cfg.SpeechCommand,
			MaxTextLength: cfg.MaxTextLength,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return engine, func() { engine.Cancel() }, nil

	case config.EnginePiper:
		return newPiperPipeline(cfg, logger)

	default:
		return nil, nil, fmt.Errorf("unknown speech engine %q", cfg.SpeechEngine)
	}
}

// newPiperPipeline wires piper synthesis, ffmpeg conversion and the Discord
// voice channel behind the single-worker utterance queue.
func newPiperPipeline(cfg *config.Config, logger *slog.Logger) (speech.Engine, func(), error) {
	piperEngine, err := tts.NewPiperEngine(tts.PiperConfig{
		BinaryPath: cfg.PiperPath,
		ModelPath:  cfg.PiperModel,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	registry, err := tts.NewRegistry(piperEngine)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Piper TTS engine registered", "model", cfg.PiperModel, "engines", registry.List())

	transcoder, err := audio.NewTranscoder()
	if err != nil {
		return nil, nil, err
	}

	speaker, err := discord.NewSpeaker(cfg.DiscordToken, cfg.GuildID, cfg.DefaultVoiceChannelID, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create speaker: %w", err)
	}
	if err := speaker.Open(); err != nil {
		return nil, nil, fmt.Errorf("open Discord session: %w", err)
	}
	logger.Info("Discord session opened")

	q := queue.NewQueue(cfg.QueueCapacity, cfg.AutoLeaveIdle, logger)

	// Leave the voice channel after a quiet period
	q.SetIdleCallback(func() {
		logger.Info("narration idle, leaving voice channel")
		if err := speaker.Leave(); err != nil {
			logger.Error("failed to leave voice channel", "error", err)
		}
	})

	q.SetShutdownCallback(func() {
		if err := speaker.Leave(); err != nil {
			logger.Error("failed to leave voice channel during shutdown", "error", err)
		}
	})

	q.SetJobCompletedCallback(func(job *queue.Job, err error) {
		logger.Debug("utterance finished", "token", job.Token, "error", err)
	})

	handler := playback.NewHandler(registry, transcoder, speaker, cfg.MaxTextLength, logger)
	q.SetPlaybackHandler(handler.Handle)
	q.Start()

	cleanup := func() {
		q.Stop()
		if err := speaker.Close(); err != nil {
			logger.Error("failed to close Discord session", "error", err)
		}
	}

	return playback.NewEngine(q, speaker, logger), cleanup, nil
}
