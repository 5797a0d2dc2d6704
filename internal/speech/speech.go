// Package speech defines the contract between the narration controller and
// a host speech engine, along with the engines the service ships with.
//
// An engine voices one utterance at a time. Lifecycle callbacks are delivered
// to the Sink passed with the utterance and carry the utterance token, so a
// receiver can tell a current callback from a late one belonging to an
// utterance it has already abandoned.
package speech

import "fmt"

// EventKind identifies a lifecycle callback.
type EventKind int

const (
	EventStart EventKind = iota
	EventPause
	EventResume
	EventEnd
	EventError
)

// String returns the lowercase callback name.
func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a lifecycle callback for one utterance.
type Event struct {
	Kind   EventKind
	Token  string
	Reason Reason
	// Err carries the underlying failure for error events, when there is one.
	Err error
}

// Utterance is a single request to voice text.
type Utterance struct {
	Token string
	Text  string
	Voice string
	Rate  float64
}

// Sink receives lifecycle callbacks. Deliver must not block for long; it may
// be called from any goroutine, including synchronously from inside Speak,
// Cancel or Pause.
type Sink interface {
	Deliver(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Deliver calls f(ev).
func (f SinkFunc) Deliver(ev Event) {
	f(ev)
}

// Engine is a single-slot speech device.
type Engine interface {
	// Speak starts voicing u and reports its lifecycle to sink. A returned
	// error means the utterance was never started and no callbacks follow.
	Speak(u Utterance, sink Sink) error
	// Cancel abandons the in-flight utterance, if any. Its sink may still
	// receive an end or error callback afterwards.
	Cancel()
	// Pause holds the in-flight utterance. Engines that cannot pause do not
	// acknowledge with a pause callback.
	Pause()
	// Resume continues a held utterance.
	Resume()
	// Name returns the engine identifier.
	Name() string
}
