package discord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/aural-odyssey/internal/logging"
)

// newIdleSpeaker builds a speaker with no session; joining needs a real
// bot token.
func newIdleSpeaker(channelID string) *Speaker {
	return &Speaker{
		channelID: channelID,
		logger:    logging.New("error", "text"),
		gate:      newGate(),
	}
}

func TestSpeaker_NotJoined(t *testing.T) {
	s := newIdleSpeaker("")

	if s.Connected() {
		t.Error("Connected() = true before Join")
	}
	if err := s.Play(context.Background(), make([]byte, 16)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Play() error = %v, want ErrNotConnected", err)
	}
	if err := s.Join(context.Background()); !errors.Is(err, ErrNoChannel) {
		t.Errorf("Join() error = %v, want ErrNoChannel", err)
	}
	if err := s.Leave(); err != nil {
		t.Errorf("Leave() error = %v, want nil", err)
	}
}

func TestSpeaker_PauseResume(t *testing.T) {
	s := newIdleSpeaker("123")

	steps := []struct {
		op   string
		want bool
	}{
		{"resume", false},
		{"pause", true},
		{"pause", false},
		{"resume", true},
		{"resume", false},
	}
	for i, st := range steps {
		var got bool
		if st.op == "pause" {
			got = s.Pause()
		} else {
			got = s.Resume()
		}
		if got != st.want {
			t.Errorf("step %d %s() = %v, want %v", i, st.op, got, st.want)
		}
	}
}

func TestGate(t *testing.T) {
	g := newGate()
	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() on open gate = %v", err)
	}

	g.Hold()
	done := make(chan error, 1)
	go func() { done <- g.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Wait() returned while held")
	case <-time.After(20 * time.Millisecond):
	}

	g.Release()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() = %v after Release", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() still blocked after Release")
	}
}

func TestGate_CancelledWaitKeepsHold(t *testing.T) {
	g := newGate()
	g.Hold()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := g.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}
	if !g.Held() {
		t.Error("gate released by a cancelled Wait")
	}
}
