// Package discord voices narration into a Discord voice channel.
package discord

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dgnsrekt/aural-odyssey/internal/audio"
	"layeh.com/gopus"
)

const (
	joinTimeout   = 10 * time.Second
	readyPoll     = 100 * time.Millisecond
	frameInterval = 20 * time.Millisecond
	maxPacketSize = 4000
)

var (
	// ErrNotConnected is returned by Play before Join has succeeded.
	ErrNotConnected = errors.New("not connected to voice channel")
	// ErrConnectionFailed is returned when the voice gateway never becomes
	// ready.
	ErrConnectionFailed = errors.New("failed to connect to voice channel")
	// ErrNoChannel is returned by Join when no channel is configured.
	ErrNoChannel = errors.New("no voice channel configured")
)

// Speaker plays PCM into one guild's voice channel over the bot's session.
// Playback can be held between frames with Pause and continued with
// Resume.
type Speaker struct {
	session   *discordgo.Session
	guildID   string
	channelID string
	logger    *slog.Logger

	mu   sync.Mutex
	conn *discordgo.VoiceConnection
	enc  *gopus.Encoder
	gate *gate
}

// NewSpeaker prepares a speaker for a bot token. The session is not opened
// until Open.
func NewSpeaker(token, guildID, channelID string, logger *slog.Logger) (*Speaker, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	enc, err := gopus.NewEncoder(audio.SampleRate, audio.Channels, gopus.Voip)
	if err != nil {
		return nil, err
	}
	return &Speaker{
		session:   session,
		guildID:   guildID,
		channelID: channelID,
		logger:    logger.With("guild_id", guildID),
		enc:       enc,
		gate:      newGate(),
	}, nil
}

// Open connects the bot session to the gateway.
func (s *Speaker) Open() error {
	return s.session.Open()
}

// Close leaves voice and closes the session.
func (s *Speaker) Close() error {
	if err := s.Leave(); err != nil {
		s.logger.Warn("leaving voice on close", "error", err)
	}
	return s.session.Close()
}

// Join enters the configured voice channel and waits for the connection to
// become ready. Joining while connected does nothing.
func (s *Speaker) Join(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}
	if s.channelID == "" {
		return ErrNoChannel
	}

	s.logger.Info("joining voice channel", "channel_id", s.channelID)

	// join unmuted and deafened; the bot never listens
	vc, err := s.session.ChannelVoiceJoin(s.guildID, s.channelID, false, true)
	if err != nil {
		return errors.Join(ErrConnectionFailed, err)
	}
	if err := awaitReady(ctx, vc); err != nil {
		vc.Disconnect()
		return err
	}

	s.conn = vc
	s.logger.Info("voice channel ready", "channel_id", s.channelID)
	return nil
}

func awaitReady(ctx context.Context, vc *discordgo.VoiceConnection) error {
	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	poll := time.NewTicker(readyPoll)
	defer poll.Stop()

	for !vc.Ready {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrConnectionFailed
			}
			return ctx.Err()
		case <-poll.C:
		}
	}
	return nil
}

// Leave exits the voice channel, if joined.
func (s *Speaker) Leave() error {
	s.mu.Lock()
	vc := s.conn
	s.conn = nil
	s.mu.Unlock()

	if vc == nil {
		return nil
	}
	s.logger.Info("leaving voice channel")
	return vc.Disconnect()
}

// Connected reports whether the speaker holds a ready voice connection.
func (s *Speaker) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Pause holds audio after the frame in flight. It reports whether playback
// was running.
func (s *Speaker) Pause() bool {
	return s.gate.Hold()
}

// Resume releases held audio. It reports whether playback was paused.
func (s *Speaker) Resume() bool {
	return s.gate.Release()
}

// Play streams PCM in the audio package's output format to the channel,
// one Opus packet per 20ms. It returns ctx.Err() once cancelled, also
// while held by Pause.
func (s *Speaker) Play(ctx context.Context, pcm []byte) error {
	s.mu.Lock()
	vc := s.conn
	s.mu.Unlock()
	if vc == nil {
		return ErrNotConnected
	}

	frames := audio.NewFramer(pcm)
	samples := make([]int16, audio.FrameSamples*audio.Channels)

	s.speaking(vc, true)
	defer s.speaking(vc, false)

	tick := time.NewTicker(frameInterval)
	defer tick.Stop()

	for {
		if s.gate.Held() {
			s.speaking(vc, false)
			if err := s.gate.Wait(ctx); err != nil {
				return err
			}
			s.speaking(vc, true)
			tick.Reset(frameInterval)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}

		frame, ok := frames.Next()
		if !ok {
			return nil
		}
		packet, err := s.encode(frame, samples)
		if err != nil {
			s.logger.Error("opus encoding failed", "error", err)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case vc.OpusSend <- packet:
		}
	}
}

func (s *Speaker) speaking(vc *discordgo.VoiceConnection, on bool) {
	if err := vc.Speaking(on); err != nil {
		s.logger.Error("failed to set speaking state", "speaking", on, "error", err)
	}
}

// encode turns one frame into an Opus packet, using samples as scratch.
func (s *Speaker) encode(frame []byte, samples []int16) ([]byte, error) {
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(frame[2*i:]))
	}
	return s.enc.Encode(samples, audio.FrameSamples, maxPacketSize)
}
