package narration

import (
	"errors"
	"fmt"

	"github.com/dgnsrekt/aural-odyssey/internal/speech"
)

var (
	// ErrNothingToPlay is returned by Play when no sections are loaded.
	ErrNothingToPlay = errors.New("nothing to play")
	// ErrNoVoice is returned when no playable voice and rate can be resolved.
	ErrNoVoice = errors.New("no playable voice configured")
	// ErrOutOfRange is returned by Seek for an index outside the sections.
	ErrOutOfRange = errors.New("section index out of range")
	// ErrNotSpeaking is returned by Pause when nothing is being voiced.
	ErrNotSpeaking = errors.New("narration is not speaking")
	// ErrNotPaused is returned by Resume when narration is not held.
	ErrNotPaused = errors.New("narration is not paused")
	// ErrClosed is returned by commands on a closed controller.
	ErrClosed = errors.New("narration controller is closed")
)

// Phase is the playback phase of a controller. An explicit stop is reported
// as Idle with Snapshot.Stopped set.
type Phase int

const (
	Idle Phase = iota
	Speaking
	Paused
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Speaking:
		return "speaking"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*p = Idle
	case "speaking":
		*p = Speaking
	case "paused":
		*p = Paused
	default:
		return fmt.Errorf("unknown phase %q", b)
	}
	return nil
}

// Snapshot is a point-in-time copy of a controller's state for rendering.
type Snapshot struct {
	Controller     string `json:"controller"`
	Phase          Phase  `json:"phase"`
	Cursor         int    `json:"cursor"`
	Highlight      int    `json:"highlight"`
	Sections       int    `json:"sections"`
	Stopped        bool   `json:"stopped"`
	PauseRequested bool   `json:"pause_requested"`
	Token          string `json:"token,omitempty"`
}

// NoticeKind classifies a user-facing notification.
type NoticeKind string

const (
	NoticeComplete NoticeKind = "complete"
	NoticeStopped  NoticeKind = "stopped"
	NoticeWarning  NoticeKind = "warning"
)

// Notice is a transient user-facing notification raised by a controller.
type Notice struct {
	Kind       NoticeKind    `json:"kind"`
	Controller string        `json:"controller"`
	Title      string        `json:"title"`
	Message    string        `json:"message"`
	Reason     speech.Reason `json:"reason,omitempty"`
}

func completeNotice(controller string) Notice {
	return Notice{
		Kind:       NoticeComplete,
		Controller: controller,
		Title:      "Narration Complete",
		Message:    "Finished narrating all sections.",
	}
}

func stoppedNotice(controller string) Notice {
	return Notice{
		Kind:       NoticeStopped,
		Controller: controller,
		Title:      "Narration Stopped",
		Message:    "Audio playback has been stopped.",
	}
}

func warningNotice(controller string, reason speech.Reason) Notice {
	return Notice{
		Kind:       NoticeWarning,
		Controller: controller,
		Title:      "Speech Error",
		Message:    reason.Message(),
		Reason:     reason,
	}
}

// Settings supplies the voice and rate for each issued utterance. It is
// consulted every time, so a change applies from the next section on.
type Settings interface {
	Resolve() (voice string, rate float64, err error)
}

// StaticSettings is a Settings with a fixed voice and rate.
type StaticSettings struct {
	Voice string
	Rate  float64
}

// Resolve returns the fixed voice and rate.
func (s StaticSettings) Resolve() (string, float64, error) {
	return s.Voice, s.Rate, nil
}

// Metrics receives playback counters.
type Metrics interface {
	UtteranceIssued(controller string)
	EngineError(controller string, reason speech.Reason)
	NarrationCompleted(controller string)
	StaleEvent(controller string)
}

type nopMetrics struct{}

func (nopMetrics) UtteranceIssued(string)            {}
func (nopMetrics) EngineError(string, speech.Reason) {}
func (nopMetrics) NarrationCompleted(string)         {}
func (nopMetrics) StaleEvent(string)                 {}
