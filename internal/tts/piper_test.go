package tts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/aural-odyssey/internal/logging"
	"github.com/dgnsrekt/aural-odyssey/internal/wav"
)

// fakePiper installs a shell script standing in for piper. It records its
// arguments to the returned file, then runs body.
func fakePiper(t *testing.T, body string) (*PiperEngine, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	bin := filepath.Join(dir, "piper")
	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\n" + body + "\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake piper: %v", err)
	}

	engine, err := NewPiperEngine(PiperConfig{BinaryPath: bin, ModelPath: "hi.onnx"}, logging.New("error", "text"))
	if err != nil {
		t.Fatalf("NewPiperEngine: %v", err)
	}
	return engine, argsFile
}

func TestNewPiperEngine_Errors(t *testing.T) {
	logger := logging.New("error", "text")

	if _, err := NewPiperEngine(PiperConfig{BinaryPath: "/nonexistent/piper", ModelPath: "m.onnx"}, logger); !errors.Is(err, ErrPiperNotFound) {
		t.Errorf("missing binary: error = %v, want ErrPiperNotFound", err)
	}

	// sh is on PATH everywhere the fake scripts run
	if _, err := NewPiperEngine(PiperConfig{BinaryPath: "sh"}, logger); !errors.Is(err, ErrNoModelSpecified) {
		t.Errorf("missing model: error = %v, want ErrNoModelSpecified", err)
	}
}

func TestPiperEngine_Args(t *testing.T) {
	engine := &PiperEngine{model: "hi.onnx"}
	base := []string{"--model", "hi.onnx", "--output-raw"}

	tests := []struct {
		name  string
		voice string
		rate  float64
		extra []string
	}{
		{"named voice at normal speed", "lekha", 1, nil},
		{"zero rate", "", 0, nil},
		{"speaker id", "3", 0, []string{"--speaker", "3"}},
		{"negative speaker ignored", "-1", 0, nil},
		{"double speed", "", 2, []string{"--length_scale", "0.500"}},
		{"half speed", "", 0.5, []string{"--length_scale", "2.000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := append(slices.Clone(base), tt.extra...)
			got := engine.args(SynthesizeRequest{Voice: tt.voice, Rate: tt.rate})
			if !slices.Equal(got, want) {
				t.Errorf("args() = %v, want %v", got, want)
			}
		})
	}
}

func TestPiperEngine_Synthesize(t *testing.T) {
	engine, argsFile := fakePiper(t, "cat")
	if engine.Name() != "piper" {
		t.Errorf("Name() = %q", engine.Name())
	}

	// 4410 bytes of 16-bit mono at 22050 Hz is 100ms
	text := strings.Repeat("a", 4410)
	result, err := engine.Synthesize(context.Background(), SynthesizeRequest{Text: text, Voice: "1", Rate: 1.25})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	h, pcm, err := wav.Parse(result.Data)
	if err != nil {
		t.Fatalf("result is not WAV: %v", err)
	}
	if string(pcm) != text {
		t.Error("stdin did not come back as the PCM payload")
	}
	if h.SampleRate != wav.PiperSampleRate {
		t.Errorf("sample rate = %d, want %d", h.SampleRate, wav.PiperSampleRate)
	}
	if result.Duration != 100*time.Millisecond {
		t.Errorf("Duration = %v, want 100ms", result.Duration)
	}
	if result.Rate != 1.25 {
		t.Errorf("Rate = %v, want 1.25", result.Rate)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	if got := strings.TrimSpace(string(args)); got != "--model hi.onnx --output-raw --speaker 1 --length_scale 0.800" {
		t.Errorf("piper args = %q", got)
	}
}

func TestPiperEngine_SynthesizeErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		text    string
		cancel  bool
		wantErr error
	}{
		{name: "empty text", body: "cat", text: "", wantErr: ErrEmptyText},
		{name: "whitespace only", body: "cat", text: " \n\t", wantErr: ErrEmptyText},
		{name: "non-zero exit", body: "exit 3", text: "hello", wantErr: ErrSynthesisFailed},
		{name: "no output", body: "cat > /dev/null", text: "hello", wantErr: ErrSynthesisFailed},
		{name: "cancelled", body: "sleep 5", text: "hello", cancel: true, wantErr: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := fakePiper(t, tt.body)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				cancel()
			}

			if _, err := engine.Synthesize(ctx, SynthesizeRequest{Text: tt.text}); !errors.Is(err, tt.wantErr) {
				t.Errorf("Synthesize() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
