// Package tts synthesizes utterance text into WAV audio for the voice
// channel pipeline.
package tts

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyText is returned when there is nothing to synthesize.
var ErrEmptyText = errors.New("empty text")

// SynthesizeRequest is one utterance to synthesize.
type SynthesizeRequest struct {
	Text  string
	Voice string
	// Rate is the speaking rate multiplier; zero means normal speed.
	Rate float64
}

// AudioResult is synthesized audio.
type AudioResult struct {
	// Data holds a complete WAV file.
	Data     []byte
	Duration time.Duration
	// Rate is the speaking rate the engine already applied; zero means
	// the audio is at normal speed.
	Rate float64
}

// Engine converts text to audio.
type Engine interface {
	Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error)
	Name() string
}
