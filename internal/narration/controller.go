package narration

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgnsrekt/aural-odyssey/internal/speech"
	"github.com/google/uuid"
)

// Controller narrates a sequence of sections one utterance at a time through
// a shared Device. It implements speech.Sink so it can receive the
// callbacks for the utterances it issues.
type Controller struct {
	name     string
	dev      *Device
	settings Settings
	logger   *slog.Logger

	// Session state, only touched on the device task queue.
	chunks         []string
	cursor         int
	phase          Phase
	token          string
	stopRequested  bool
	pauseRequested bool
	highlight      int
	closed         bool
}

// NewController creates an idle controller with no sections loaded.
func NewController(name string, dev *Device, settings Settings, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		name:      name,
		dev:       dev,
		settings:  settings,
		logger:    logger.With("controller", name),
		cursor:    -1,
		highlight: -1,
	}
}

// Name returns the controller name.
func (c *Controller) Name() string {
	return c.name
}

// Load installs a new section sequence and resets the session. Anything the
// controller was voicing is canceled.
func (c *Controller) Load(chunks []string) error {
	sections := append([]string(nil), chunks...)
	return c.do(func() error {
		c.dev.release(c)
		c.reset(sections)
		c.logger.Info("sections loaded", "sections", len(sections))
		c.changed()
		return nil
	})
}

// Play starts narration at the first section, or restarts the current
// section after a stop. While speaking it toggles to pause; while paused it
// resumes.
func (c *Controller) Play() error {
	return c.do(c.play)
}

// Pause asks the engine to hold the current utterance. The phase becomes
// Paused when the engine acknowledges.
func (c *Controller) Pause() error {
	return c.do(c.pause)
}

// Resume replays the held section from its beginning.
func (c *Controller) Resume() error {
	return c.do(c.resume)
}

// Stop halts narration from any phase. The cursor is kept so a later Play
// restarts the same section.
func (c *Controller) Stop(showNotice bool) error {
	return c.do(func() error {
		c.stop(showNotice)
		return nil
	})
}

// Seek stops narration and starts the section at index.
func (c *Controller) Seek(index int) error {
	return c.do(func() error {
		return c.seek(index)
	})
}

// Close stops narration and resets the session. Later commands return
// ErrClosed.
func (c *Controller) Close() error {
	return c.do(func() error {
		c.stop(false)
		c.reset(nil)
		c.closed = true
		c.changed()
		return nil
	})
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	var s Snapshot
	c.dev.call(func() {
		s = c.snapshot()
	})
	return s
}

// Sections returns a copy of the loaded sections.
func (c *Controller) Sections() []string {
	var out []string
	c.dev.call(func() {
		out = append([]string(nil), c.chunks...)
	})
	return out
}

// Deliver queues an engine callback for processing.
func (c *Controller) Deliver(ev speech.Event) {
	c.dev.post(func() {
		c.handle(ev)
	})
}

func (c *Controller) do(fn func() error) error {
	var err error
	c.dev.call(func() {
		if c.closed {
			err = ErrClosed
			return
		}
		err = fn()
	})
	return err
}

func (c *Controller) reset(chunks []string) {
	c.chunks = chunks
	c.cursor = -1
	c.phase = Idle
	c.token = ""
	c.stopRequested = false
	c.pauseRequested = false
	c.highlight = -1
}

func (c *Controller) snapshot() Snapshot {
	return Snapshot{
		Controller:     c.name,
		Phase:          c.phase,
		Cursor:         c.cursor,
		Highlight:      c.highlight,
		Sections:       len(c.chunks),
		Stopped:        c.stopRequested && c.phase == Idle,
		PauseRequested: c.pauseRequested,
		Token:          c.token,
	}
}

func (c *Controller) changed() {
	c.dev.emitSnapshot(c.snapshot())
}

func (c *Controller) resolve() (string, float64, error) {
	voice, rate, err := c.settings.Resolve()
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrNoVoice, err)
	}
	return voice, rate, nil
}

func (c *Controller) play() error {
	if len(c.chunks) == 0 {
		return ErrNothingToPlay
	}

	switch c.phase {
	case Speaking:
		if c.pauseRequested {
			return c.resume()
		}
		return c.pause()
	case Paused:
		return c.resume()
	}

	idx := c.cursor
	if idx < 0 || idx >= len(c.chunks) {
		idx = 0
	}
	if !c.playableFrom(idx) {
		return ErrNothingToPlay
	}
	voice, rate, err := c.resolve()
	if err != nil {
		return err
	}
	c.speakAt(idx, voice, rate)
	return nil
}

// playableFrom reports whether a non-blank section exists at or after idx.
func (c *Controller) playableFrom(idx int) bool {
	for ; idx < len(c.chunks); idx++ {
		if strings.TrimSpace(c.chunks[idx]) != "" {
			return true
		}
	}
	return false
}

func (c *Controller) pause() error {
	if c.phase != Speaking {
		return ErrNotSpeaking
	}
	if c.pauseRequested {
		return nil
	}
	c.pauseRequested = true
	c.dev.pause(c)
	c.changed()
	return nil
}

func (c *Controller) resume() error {
	if c.phase != Paused && !(c.phase == Speaking && c.pauseRequested) {
		return ErrNotPaused
	}
	voice, rate, err := c.resolve()
	if err != nil {
		return err
	}
	// Engines cannot be trusted to resume mid-utterance, so the held
	// section is replayed from its start.
	c.speakAt(c.cursor, voice, rate)
	return nil
}

func (c *Controller) stop(showNotice bool) {
	c.stopRequested = true
	c.pauseRequested = false
	c.dev.release(c)
	c.phase = Idle
	c.highlight = -1
	if showNotice {
		c.dev.emitNotice(stoppedNotice(c.name))
	}
	c.changed()
}

func (c *Controller) seek(index int) error {
	if index < 0 || index >= len(c.chunks) {
		return ErrOutOfRange
	}
	voice, rate, err := c.resolve()
	if err != nil {
		return err
	}
	c.stop(false)
	c.speakAt(index, voice, rate)
	return nil
}

// speakAt issues the section at idx, skipping empty sections.
func (c *Controller) speakAt(idx int, voice string, rate float64) {
	for idx < len(c.chunks) && strings.TrimSpace(c.chunks[idx]) == "" {
		idx++
	}
	if idx >= len(c.chunks) {
		c.complete()
		return
	}

	c.cursor = idx
	c.token = uuid.NewString()
	c.phase = Speaking
	c.highlight = idx
	c.stopRequested = false
	c.pauseRequested = false

	c.logger.Debug("issuing utterance",
		"section", idx,
		"token", c.token,
		"voice", voice,
		"rate", rate,
	)

	err := c.dev.issue(c, speech.Utterance{
		Token: c.token,
		Text:  c.chunks[idx],
		Voice: voice,
		Rate:  rate,
	})
	if err != nil {
		c.fail(speech.ReasonSynthesisUnavailable, err)
		return
	}
	c.changed()
}

func (c *Controller) advance() {
	next := c.cursor + 1
	if next >= len(c.chunks) {
		c.complete()
		return
	}
	voice, rate, err := c.resolve()
	if err != nil {
		c.fail(speech.ReasonVoiceUnavailable, err)
		return
	}
	c.speakAt(next, voice, rate)
}

func (c *Controller) complete() {
	c.dev.vacate(c)
	c.phase = Idle
	c.highlight = -1
	c.pauseRequested = false

	c.logger.Info("narration complete", "sections", len(c.chunks))
	c.dev.metrics.NarrationCompleted(c.name)
	c.dev.emitNotice(completeNotice(c.name))
	c.changed()
}

// fail surfaces an engine failure and forces the session back to idle.
func (c *Controller) fail(reason speech.Reason, err error) {
	if reason == speech.ReasonNone {
		reason = speech.ReasonSynthesisFailed
	}
	c.logger.Warn("speech engine error",
		"section", c.cursor,
		"token", c.token,
		"reason", string(reason),
		"error", err,
	)
	c.dev.metrics.EngineError(c.name, reason)
	c.dev.emitNotice(warningNotice(c.name, reason))
	c.stop(false)
}

// preempt is called by the device when another controller takes the slot.
func (c *Controller) preempt() {
	c.logger.Info("narration preempted", "section", c.cursor)
	c.stopRequested = true
	c.pauseRequested = false
	c.phase = Idle
	c.highlight = -1
	c.changed()
}

func (c *Controller) handle(ev speech.Event) {
	if c.closed || ev.Token == "" || ev.Token != c.token {
		c.dev.metrics.StaleEvent(c.name)
		c.logger.Debug("discarding stale callback", "event", ev.Kind.String(), "token", ev.Token)
		return
	}

	switch ev.Kind {
	case speech.EventStart:
		if c.stopRequested || c.phase == Idle {
			return
		}
		c.logger.Debug("utterance started", "section", c.cursor, "token", ev.Token)

	case speech.EventPause:
		if c.stopRequested || c.phase != Speaking {
			return
		}
		c.phase = Paused
		c.pauseRequested = false
		c.changed()

	case speech.EventResume:
		if c.stopRequested || c.phase != Paused {
			return
		}
		c.phase = Speaking
		c.changed()

	case speech.EventEnd:
		if c.stopRequested || c.phase == Idle {
			return
		}
		c.advance()

	case speech.EventError:
		if ev.Reason.IsCancellation() || c.stopRequested || c.phase == Idle {
			c.logger.Debug("ignoring cancellation callback", "reason", string(ev.Reason), "token", ev.Token)
			return
		}
		c.fail(ev.Reason, ev.Err)
	}
}
