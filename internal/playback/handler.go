// Package playback voices queued utterances through the synthesis, audio
// conversion and Discord voice pipeline.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgnsrekt/aural-odyssey/internal/queue"
	"github.com/dgnsrekt/aural-odyssey/internal/speech"
	"github.com/dgnsrekt/aural-odyssey/internal/tts"
)

var (
	// ErrNoTTSEngine is returned when no TTS engine is available.
	ErrNoTTSEngine = errors.New("no TTS engine available")
	// ErrSynthesisFailed is returned when TTS synthesis fails during playback.
	ErrSynthesisFailed = errors.New("TTS synthesis failed")
	// ErrConversionFailed is returned when audio conversion fails.
	ErrConversionFailed = errors.New("audio conversion failed")
	// ErrVoiceConnection is returned when the voice channel cannot be joined
	// or stops accepting audio.
	ErrVoiceConnection = errors.New("voice connection failed")
	// ErrTextTooLong is returned for text over the configured limit.
	ErrTextTooLong = errors.New("text too long")
)

// Synthesizer provides the TTS engine to use. *tts.Registry satisfies it.
type Synthesizer interface {
	Default() (tts.Engine, error)
}

// Transcoder turns synthesized WAV into voice PCM at a tempo.
// *audio.Transcoder satisfies it.
type Transcoder interface {
	Transcode(ctx context.Context, wavData []byte, tempo float64) ([]byte, error)
}

// Player sends PCM to a voice channel. *discord.Speaker satisfies it.
type Player interface {
	Connected() bool
	Join(ctx context.Context) error
	Play(ctx context.Context, pcm []byte) error
	Pause() bool
	Resume() bool
}

// Handler voices one job at a time and reports its lifecycle to the job's
// sink.
type Handler struct {
	synth         Synthesizer
	transcoder    Transcoder
	player        Player
	maxTextLength int
	logger        *slog.Logger
}

// NewHandler creates a playback handler. A maxTextLength of zero means no
// limit.
func NewHandler(synth Synthesizer, transcoder Transcoder, player Player, maxTextLength int, logger *slog.Logger) *Handler {
	return &Handler{
		synth:         synth,
		transcoder:    transcoder,
		player:        player,
		maxTextLength: maxTextLength,
		logger:        logger,
	}
}

// Handle voices a job. It is the queue's playback handler. Every return
// path delivers exactly one end or error event to the job's sink.
func (h *Handler) Handle(ctx context.Context, job *queue.Job) error {
	h.logger.Info("processing utterance",
		"token", job.Token,
		"text_length", len(job.Text),
		"voice", job.Voice,
		"rate", job.Rate,
	)

	if h.maxTextLength > 0 && len(job.Text) > h.maxTextLength {
		return h.fail(job, speech.ReasonTextTooLong,
			fmt.Errorf("%w: %d > %d bytes", ErrTextTooLong, len(job.Text), h.maxTextLength))
	}

	engine, err := h.synth.Default()
	if err != nil {
		return h.fail(job, speech.ReasonSynthesisUnavailable, errors.Join(ErrNoTTSEngine, err))
	}

	result, err := engine.Synthesize(ctx, tts.SynthesizeRequest{
		Text:  job.Text,
		Voice: job.Voice,
		Rate:  job.Rate,
	})
	if err != nil {
		return h.failOrCancel(ctx, job, speech.ReasonSynthesisFailed, errors.Join(ErrSynthesisFailed, err))
	}

	h.logger.Debug("synthesis complete",
		"token", job.Token,
		"engine", engine.Name(),
		"duration", result.Duration,
		"bytes", len(result.Data),
	)

	pcm, err := h.transcoder.Transcode(ctx, result.Data, remainingTempo(job.Rate, result.Rate))
	if err != nil {
		return h.failOrCancel(ctx, job, speech.ReasonSynthesisFailed, errors.Join(ErrConversionFailed, err))
	}

	if !h.player.Connected() {
		h.logger.Info("connecting to voice channel", "token", job.Token)
		if err := h.player.Join(ctx); err != nil {
			return h.failOrCancel(ctx, job, speech.ReasonAudioHardware, errors.Join(ErrVoiceConnection, err))
		}
	}

	job.Deliver(speech.EventStart, speech.ReasonNone, nil)

	if err := h.player.Play(ctx, pcm); err != nil {
		return h.failOrCancel(ctx, job, speech.ReasonAudioHardware, errors.Join(ErrVoiceConnection, err))
	}

	h.logger.Info("utterance complete", "token", job.Token)
	job.Deliver(speech.EventEnd, speech.ReasonNone, nil)
	return nil
}

func (h *Handler) fail(job *queue.Job, reason speech.Reason, err error) error {
	h.logger.Error("utterance failed", "token", job.Token, "reason", reason, "error", err)
	job.Deliver(speech.EventError, reason, err)
	return err
}

// failOrCancel reports a cancelled context as a cancellation rather than
// as the failure it caused.
func (h *Handler) failOrCancel(ctx context.Context, job *queue.Job, reason speech.Reason, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		h.logger.Info("utterance interrupted", "token", job.Token)
		job.Deliver(speech.EventError, speech.ReasonCanceled, nil)
		return context.Canceled
	}
	return h.fail(job, reason, err)
}

// remainingTempo is the tempo change left after the engine applied applied.
func remainingTempo(want, applied float64) float64 {
	if want <= 0 {
		want = 1
	}
	if applied <= 0 {
		applied = 1
	}
	return want / applied
}
