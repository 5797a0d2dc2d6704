package queue

import (
	"time"

	"github.com/dgnsrekt/aural-odyssey/internal/speech"
)

// Job is one utterance waiting for the playback worker.
type Job struct {
	Token     string
	Text      string
	Voice     string
	Rate      float64
	Sink      speech.Sink
	CreatedAt time.Time
}

// NewJob creates a job from an utterance. Events for the job go to sink.
func NewJob(u speech.Utterance, sink speech.Sink) *Job {
	return &Job{
		Token:     u.Token,
		Text:      u.Text,
		Voice:     u.Voice,
		Rate:      u.Rate,
		Sink:      sink,
		CreatedAt: time.Now(),
	}
}

// Deliver sends an event for this job to its sink, tagged with the job token.
// Jobs without a sink drop their events.
func (j *Job) Deliver(kind speech.EventKind, reason speech.Reason, err error) {
	if j.Sink == nil {
		return
	}
	j.Sink.Deliver(speech.Event{Kind: kind, Token: j.Token, Reason: reason, Err: err})
}
