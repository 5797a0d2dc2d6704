package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dgnsrekt/aural-odyssey/internal/wav"
)

var (
	// ErrPiperNotFound is returned when the piper binary is not found.
	ErrPiperNotFound = errors.New("piper binary not found")
	// ErrNoModelSpecified is returned when no model is configured.
	ErrNoModelSpecified = errors.New("no piper model specified")
	// ErrSynthesisFailed is returned when piper exits unsuccessfully or
	// produces no audio.
	ErrSynthesisFailed = errors.New("TTS synthesis failed")
)

// PiperConfig holds configuration for the Piper engine.
type PiperConfig struct {
	BinaryPath string
	// ModelPath is the ONNX voice model.
	ModelPath string
}

// PiperEngine synthesizes with a local piper binary writing raw 22.05kHz
// mono PCM.
type PiperEngine struct {
	bin    string
	model  string
	logger *slog.Logger
}

// NewPiperEngine resolves the piper binary and checks a model is set.
func NewPiperEngine(cfg PiperConfig, logger *slog.Logger) (*PiperEngine, error) {
	name := cfg.BinaryPath
	if name == "" {
		name = "piper"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPiperNotFound, name)
	}
	if cfg.ModelPath == "" {
		return nil, ErrNoModelSpecified
	}
	return &PiperEngine{bin: bin, model: cfg.ModelPath, logger: logger}, nil
}

// Name returns the engine identifier.
func (p *PiperEngine) Name() string {
	return "piper"
}

// args builds the piper command line. A numeric voice selects a speaker of
// a multi-speaker model. Rate maps onto piper's phoneme length scale, its
// inverse.
func (p *PiperEngine) args(req SynthesizeRequest) []string {
	args := []string{"--model", p.model, "--output-raw"}
	if id, err := strconv.Atoi(req.Voice); err == nil && id >= 0 {
		args = append(args, "--speaker", strconv.Itoa(id))
	}
	if req.Rate > 0 && req.Rate != 1 {
		args = append(args, "--length_scale", strconv.FormatFloat(1/req.Rate, 'f', 3, 64))
	}
	return args
}

// Synthesize feeds req.Text to piper on stdin and returns its output as WAV
// with the rate already applied.
func (p *PiperEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	args := p.args(req)
	p.logger.Debug("running piper", "args", args, "text_length", len(req.Text))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.bin, args...)
	cmd.Stdin = strings.NewReader(req.Text)
	cmd.Stderr = &stderr

	raw, err := cmd.Output()
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		p.logger.Error("piper failed", "error", err, "stderr", strings.TrimSpace(stderr.String()))
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	case len(raw) == 0:
		return nil, fmt.Errorf("%w: no audio output", ErrSynthesisFailed)
	}

	data := wav.WrapRawPCM(raw, wav.PiperSampleRate, wav.PiperChannels, wav.PiperBitsPerSample)
	h, _, err := wav.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	p.logger.Debug("piper synthesis complete", "bytes", len(raw), "duration", h.Duration())

	return &AudioResult{Data: data, Duration: h.Duration(), Rate: req.Rate}, nil
}
