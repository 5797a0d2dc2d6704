package playback

import (
	"log/slog"

	"github.com/dgnsrekt/aural-odyssey/internal/queue"
	"github.com/dgnsrekt/aural-odyssey/internal/speech"
)

// Engine is a speech.Engine that voices utterances through a Discord voice
// channel. Utterances run on the queue's single worker; the queue's playback
// handler must be a Handler sharing the same Player.
type Engine struct {
	queue  *queue.Queue
	player Player
	logger *slog.Logger
}

// NewEngine creates an engine over a started queue.
func NewEngine(q *queue.Queue, player Player, logger *slog.Logger) *Engine {
	return &Engine{queue: q, player: player, logger: logger}
}

// Name returns the engine identifier.
func (e *Engine) Name() string {
	return "discord"
}

// Speak abandons whatever is playing and queues u.
func (e *Engine) Speak(u speech.Utterance, sink speech.Sink) error {
	e.Cancel()
	return e.queue.Enqueue(queue.NewJob(u, sink))
}

// Cancel stops the utterance being voiced. Utterances that were queued but
// never started are reported as canceled here; the running one reports
// from its handler.
func (e *Engine) Cancel() {
	for _, job := range e.queue.Interrupt() {
		job.Deliver(speech.EventError, speech.ReasonCanceled, nil)
	}
	e.player.Resume()
}

// Pause holds the running utterance between frames.
func (e *Engine) Pause() {
	job := e.queue.Current()
	if job == nil {
		return
	}
	if e.player.Pause() {
		e.logger.Debug("utterance paused", "token", job.Token)
		job.Deliver(speech.EventPause, speech.ReasonNone, nil)
	}
}

// Resume continues a held utterance.
func (e *Engine) Resume() {
	job := e.queue.Current()
	if job == nil {
		return
	}
	if e.player.Resume() {
		e.logger.Debug("utterance resumed", "token", job.Token)
		job.Deliver(speech.EventResume, speech.ReasonNone, nil)
	}
}
