// Package wav reads and writes the canonical 44-byte PCM WAV layout produced
// by the synthesis engines.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// HeaderSize is the size of a canonical PCM WAV header in bytes.
	HeaderSize = 44

	// FormatPCM is the audio format code for uncompressed PCM.
	FormatPCM = 1
)

// Piper writes raw 16-bit mono PCM at 22050 Hz.
const (
	PiperSampleRate    = 22050
	PiperChannels      = 1
	PiperBitsPerSample = 16
)

var (
	// ErrShortHeader is returned when data is too small to hold a header.
	ErrShortHeader = errors.New("wav: data shorter than header")
	// ErrNotWAV is returned when the RIFF/WAVE magic is missing.
	ErrNotWAV = errors.New("wav: missing RIFF/WAVE magic")
	// ErrUnsupportedFormat is returned for anything other than PCM.
	ErrUnsupportedFormat = errors.New("wav: unsupported audio format")
)

// Header describes a PCM stream.
type Header struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataSize      int
}

// ByteRate returns the number of PCM bytes per second.
func (h Header) ByteRate() int {
	return h.SampleRate * h.Channels * h.BitsPerSample / 8
}

// Duration returns the playing time of the data chunk.
func (h Header) Duration() time.Duration {
	rate := h.ByteRate()
	if rate == 0 {
		return 0
	}
	return time.Duration(int64(h.DataSize) * int64(time.Second) / int64(rate))
}

// WrapRawPCM prepends a canonical header to raw little-endian PCM.
func WrapRawPCM(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	h := Header{
		SampleRate:    sampleRate,
		Channels:      channels,
		BitsPerSample: bitsPerSample,
		DataSize:      len(pcm),
	}

	out := make([]byte, HeaderSize, HeaderSize+len(pcm))
	le := binary.LittleEndian

	copy(out[0:4], "RIFF")
	le.PutUint32(out[4:8], uint32(36+h.DataSize))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	le.PutUint32(out[16:20], 16)
	le.PutUint16(out[20:22], FormatPCM)
	le.PutUint16(out[22:24], uint16(h.Channels))
	le.PutUint32(out[24:28], uint32(h.SampleRate))
	le.PutUint32(out[28:32], uint32(h.ByteRate()))
	le.PutUint16(out[32:34], uint16(h.Channels*h.BitsPerSample/8))
	le.PutUint16(out[34:36], uint16(h.BitsPerSample))

	copy(out[36:40], "data")
	le.PutUint32(out[40:44], uint32(h.DataSize))

	return append(out, pcm...)
}

// Parse reads a canonical header and returns it with the PCM payload. The
// payload is truncated to the declared data size when the file is longer.
func Parse(data []byte) (Header, []byte, error) {
	if len(data) < HeaderSize {
		return Header{}, nil, ErrShortHeader
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Header{}, nil, ErrNotWAV
	}

	le := binary.LittleEndian
	if format := le.Uint16(data[20:22]); format != FormatPCM {
		return Header{}, nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, format)
	}

	h := Header{
		Channels:      int(le.Uint16(data[22:24])),
		SampleRate:    int(le.Uint32(data[24:28])),
		BitsPerSample: int(le.Uint16(data[34:36])),
		DataSize:      int(le.Uint32(data[40:44])),
	}

	pcm := data[HeaderSize:]
	if h.DataSize < len(pcm) {
		pcm = pcm[:h.DataSize]
	}
	h.DataSize = len(pcm)
	return h, pcm, nil
}
