package wav

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestWrapRawPCM(t *testing.T) {
	pcmData := []byte{0x01, 0x02, 0x03, 0x04}
	wavData := WrapRawPCM(pcmData, 22050, 1, 16)

	if len(wavData) != HeaderSize+len(pcmData) {
		t.Errorf("expected %d bytes, got %d", HeaderSize+len(pcmData), len(wavData))
	}

	for _, magic := range []struct {
		at   int
		want string
	}{
		{0, "RIFF"},
		{8, "WAVE"},
		{12, "fmt "},
		{36, "data"},
	} {
		if got := string(wavData[magic.at : magic.at+4]); got != magic.want {
			t.Errorf("bytes %d..%d = %q, want %q", magic.at, magic.at+4, got, magic.want)
		}
	}

	fileSize := uint32(wavData[4]) | uint32(wavData[5])<<8 | uint32(wavData[6])<<16 | uint32(wavData[7])<<24
	if fileSize != uint32(36+len(pcmData)) {
		t.Errorf("file size = %d, want %d", fileSize, 36+len(pcmData))
	}

	if !bytes.Equal(wavData[44:], pcmData) {
		t.Errorf("PCM data mismatch")
	}
}

func TestWrapRawPCM_Stereo(t *testing.T) {
	pcmData := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	wavData := WrapRawPCM(pcmData, 44100, 2, 16)

	// 44100 * 2 channels * 2 bytes
	byteRate := uint32(wavData[28]) | uint32(wavData[29])<<8 | uint32(wavData[30])<<16 | uint32(wavData[31])<<24
	if byteRate != 176400 {
		t.Errorf("byte rate = %d, want 176400", byteRate)
	}

	blockAlign := uint16(wavData[32]) | uint16(wavData[33])<<8
	if blockAlign != 4 {
		t.Errorf("block align = %d, want 4", blockAlign)
	}
}

func TestParse(t *testing.T) {
	pcm := bytes.Repeat([]byte{0x10, 0x20}, 50)
	h, got, err := Parse(WrapRawPCM(pcm, PiperSampleRate, PiperChannels, PiperBitsPerSample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := Header{SampleRate: 22050, Channels: 1, BitsPerSample: 16, DataSize: 100}
	if h != want {
		t.Errorf("Parse() header = %+v, want %+v", h, want)
	}
	if !bytes.Equal(got, pcm) {
		t.Error("Parse() payload mismatch")
	}
}

func TestParse_TruncatesToDeclaredSize(t *testing.T) {
	data := WrapRawPCM([]byte{1, 2, 3, 4}, 48000, 2, 16)
	data = append(data, 0xAA, 0xBB)

	h, pcm, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if h.DataSize != 4 || len(pcm) != 4 {
		t.Errorf("expected 4 payload bytes, got header %d / pcm %d", h.DataSize, len(pcm))
	}
}

func TestParse_Errors(t *testing.T) {
	notPCM := WrapRawPCM(nil, 8000, 1, 8)
	notPCM[20] = 3 // IEEE float

	badMagic := WrapRawPCM(nil, 8000, 1, 8)
	copy(badMagic[0:4], "RIFX")

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short", []byte("RIFF"), ErrShortHeader},
		{"bad magic", badMagic, ErrNotWAV},
		{"float format", notPCM, ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Parse(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHeaderDuration(t *testing.T) {
	tests := []struct {
		name string
		h    Header
		want time.Duration
	}{
		{"one second piper", Header{SampleRate: 22050, Channels: 1, BitsPerSample: 16, DataSize: 44100}, time.Second},
		{"half second discord", Header{SampleRate: 48000, Channels: 2, BitsPerSample: 16, DataSize: 96000}, 500 * time.Millisecond},
		{"zero rate", Header{DataSize: 100}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.h.Duration(); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrapRawPCM_Silence(t *testing.T) {
	w := WrapRawPCM(make([]byte, 400), 44100, 2, 16)

	// 44 header + 100 samples * 2 channels * 2 bytes
	if len(w) != HeaderSize+400 {
		t.Errorf("WrapRawPCM() length = %d, want %d", len(w), HeaderSize+400)
	}
	h, pcm, err := Parse(w)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if h.Duration() != time.Second/441 {
		t.Errorf("Duration() = %v, want %v", h.Duration(), time.Second/441)
	}
	for i, b := range pcm {
		if b != 0 {
			t.Errorf("non-zero sample byte at %d", i)
			break
		}
	}
}

func TestWrapRawPCM_EmptyData(t *testing.T) {
	w := WrapRawPCM(nil, 22050, 1, 16)
	if len(w) != HeaderSize {
		t.Errorf("WrapRawPCM(nil) length = %d, want %d", len(w), HeaderSize)
	}

	h, pcm, err := Parse(w)
	if err != nil || h.DataSize != 0 || len(pcm) != 0 {
		t.Errorf("Parse(empty) = %+v, %d bytes, %v", h, len(pcm), err)
	}
}
