package speech

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultWordsPerSecond approximates an average narration pace at rate 1.0.
const DefaultWordsPerSecond = 2.5

// ErrNilSink is returned by Speak when no sink is supplied.
var ErrNilSink = errors.New("speech sink is nil")

// SpeakingTime estimates how long text takes to voice at wordsPerSecond.
func SpeakingTime(text string, wordsPerSecond float64) time.Duration {
	if wordsPerSecond <= 0 {
		wordsPerSecond = DefaultWordsPerSecond
	}
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	return time.Duration(float64(words) / wordsPerSecond * float64(time.Second))
}

// SimulatedEngine voices nothing. It holds each utterance for the time it
// would take to read aloud and then reports the end, which makes it useful
// for headless deployments and tests.
type SimulatedEngine struct {
	mu             sync.Mutex
	wordsPerSecond float64
	current        *simulatedUtterance
	logger         *slog.Logger
}

type simulatedUtterance struct {
	token     string
	sink      Sink
	timer     *time.Timer
	remaining time.Duration
	startedAt time.Time
	paused    bool
}

// NewSimulatedEngine creates a simulated engine. A non-positive
// wordsPerSecond uses DefaultWordsPerSecond.
func NewSimulatedEngine(wordsPerSecond float64, logger *slog.Logger) *SimulatedEngine {
	if wordsPerSecond <= 0 {
		wordsPerSecond = DefaultWordsPerSecond
	}
	return &SimulatedEngine{
		wordsPerSecond: wordsPerSecond,
		logger:         logger,
	}
}

// Name returns the engine identifier.
func (e *SimulatedEngine) Name() string {
	return "simulated"
}

// Speak replaces any in-flight utterance with u.
func (e *SimulatedEngine) Speak(u Utterance, sink Sink) error {
	if sink == nil {
		return ErrNilSink
	}

	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	cur := &simulatedUtterance{
		token:     u.Token,
		sink:      sink,
		remaining: SpeakingTime(u.Text, e.wordsPerSecond*rate),
	}

	e.mu.Lock()
	prev := e.detachLocked()
	e.current = cur
	e.mu.Unlock()

	if prev != nil {
		prev.sink.Deliver(Event{Kind: EventError, Token: prev.token, Reason: ReasonCanceled})
	}

	e.logger.Debug("simulated utterance started", "token", u.Token, "duration", cur.remaining)
	sink.Deliver(Event{Kind: EventStart, Token: u.Token})

	// The timer starts after the start callback so end never precedes it.
	e.mu.Lock()
	if e.current == cur && !cur.paused && cur.timer == nil {
		e.armLocked(cur)
	}
	e.mu.Unlock()

	return nil
}

// Cancel abandons the in-flight utterance and reports it as canceled.
func (e *SimulatedEngine) Cancel() {
	e.mu.Lock()
	prev := e.detachLocked()
	e.mu.Unlock()

	if prev != nil {
		prev.sink.Deliver(Event{Kind: EventError, Token: prev.token, Reason: ReasonCanceled})
	}
}

// Pause holds the in-flight utterance, keeping the time it has left.
func (e *SimulatedEngine) Pause() {
	e.mu.Lock()
	cur := e.current
	if cur == nil || cur.paused {
		e.mu.Unlock()
		return
	}
	if cur.timer != nil {
		if !cur.timer.Stop() {
			// Already ending.
			e.mu.Unlock()
			return
		}
		cur.remaining -= time.Since(cur.startedAt)
		if cur.remaining < 0 {
			cur.remaining = 0
		}
		cur.timer = nil
	}
	cur.paused = true
	e.mu.Unlock()

	cur.sink.Deliver(Event{Kind: EventPause, Token: cur.token})
}

// Resume continues a held utterance for the time it had left.
func (e *SimulatedEngine) Resume() {
	e.mu.Lock()
	cur := e.current
	if cur == nil || !cur.paused {
		e.mu.Unlock()
		return
	}
	cur.paused = false
	e.armLocked(cur)
	e.mu.Unlock()

	cur.sink.Deliver(Event{Kind: EventResume, Token: cur.token})
}

func (e *SimulatedEngine) armLocked(cur *simulatedUtterance) {
	cur.startedAt = time.Now()
	cur.timer = time.AfterFunc(cur.remaining, func() {
		e.finish(cur)
	})
}

func (e *SimulatedEngine) detachLocked() *simulatedUtterance {
	cur := e.current
	if cur == nil {
		return nil
	}
	if cur.timer != nil {
		cur.timer.Stop()
	}
	e.current = nil
	return cur
}

func (e *SimulatedEngine) finish(cur *simulatedUtterance) {
	e.mu.Lock()
	if e.current != cur {
		e.mu.Unlock()
		return
	}
	e.current = nil
	e.mu.Unlock()

	cur.sink.Deliver(Event{Kind: EventEnd, Token: cur.token})
}
