// Package audio converts synthesized speech into voice-channel PCM.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Output format expected by the Discord voice gateway: 48kHz stereo
// signed 16-bit little-endian, sent in 20ms frames.
const (
	SampleRate   = 48000
	Channels     = 2
	FrameSamples = 960
	FrameBytes   = FrameSamples * Channels * 2
)

// atempo accepts factors in [0.5, 2]; larger changes are chained.
const (
	minTempo = 0.5
	maxTempo = 2.0
)

var (
	// ErrFFmpegNotFound is returned when ffmpeg is not installed.
	ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")
	// ErrTranscodeFailed is returned when ffmpeg exits with an error.
	ErrTranscodeFailed = errors.New("audio transcode failed")
	// ErrEmptyInput is returned when there is no audio to transcode.
	ErrEmptyInput = errors.New("empty input data")
)

// Transcoder resamples WAV audio to the output format with ffmpeg.
type Transcoder struct {
	bin string
}

// NewTranscoder looks ffmpeg up on PATH.
func NewTranscoder() (*Transcoder, error) {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, ErrFFmpegNotFound
	}
	return &Transcoder{bin: bin}, nil
}

// NewTranscoderAt uses the ffmpeg binary at bin without checking it exists.
func NewTranscoderAt(bin string) *Transcoder {
	return &Transcoder{bin: bin}
}

// Transcode converts wavData to output PCM, speeding it up or slowing it
// down by tempo without changing pitch.
func (t *Transcoder) Transcode(ctx context.Context, wavData []byte, tempo float64) ([]byte, error) {
	if len(wavData) == 0 {
		return nil, ErrEmptyInput
	}

	var out, errOut bytes.Buffer
	cmd := exec.CommandContext(ctx, t.bin, ffmpegArgs(tempo)...)
	cmd.Stdin = bytes.NewReader(wavData)
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s", ErrTranscodeFailed, strings.TrimSpace(errOut.String()))
	}
	return out.Bytes(), nil
}

func ffmpegArgs(tempo float64) []string {
	args := []string{"-loglevel", "error", "-f", "wav", "-i", "pipe:0"}
	if chain := TempoChain(tempo); chain != "" {
		args = append(args, "-filter:a", chain)
	}
	return append(args,
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-f", "s16le", "pipe:1",
	)
}

// TempoChain returns the ffmpeg filter that scales playback speed by
// tempo, or "" when tempo is 1 or not positive.
func TempoChain(tempo float64) string {
	if tempo <= 0 || tempo == 1 {
		return ""
	}

	var stages []string
	stage := func(f float64, prec int) {
		stages = append(stages, "atempo="+strconv.FormatFloat(f, 'f', prec, 64))
	}
	for ; tempo > maxTempo; tempo /= maxTempo {
		stage(maxTempo, 1)
	}
	for ; tempo < minTempo; tempo /= minTempo {
		stage(minTempo, 1)
	}
	if tempo != 1 {
		stage(tempo, -1)
	}
	return strings.Join(stages, ",")
}
