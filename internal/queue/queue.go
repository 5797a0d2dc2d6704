package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the queue is at capacity.
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueClosed is returned when attempting to enqueue to a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
)

// PlaybackHandler is called by the worker to voice a job. It must return
// once ctx is cancelled.
type PlaybackHandler func(ctx context.Context, job *Job) error

// IdleCallback is called when the queue has been idle for the idle timeout.
type IdleCallback func()

// JobCompletedCallback is called after the handler returns for a job.
type JobCompletedCallback func(job *Job, err error)

// ShutdownCallback is called once the worker has stopped.
type ShutdownCallback func()

// Queue is a bounded utterance queue drained by a single playback worker.
type Queue struct {
	capacity    int
	idleTimeout time.Duration
	logger      *slog.Logger

	mu          sync.Mutex
	pending     []*Job
	closed      bool
	current     *Job
	stopCurrent context.CancelFunc

	onPlay     PlaybackHandler
	onIdle     IdleCallback
	onComplete JobCompletedCallback
	onShutdown ShutdownCallback

	wake chan struct{}
	quit chan struct{}
	wg   sync.WaitGroup
}

// NewQueue creates a new bounded queue. An idle timeout of zero disables the
// idle callback.
func NewQueue(capacity int, idleTimeout time.Duration, logger *slog.Logger) *Queue {
	return &Queue{
		capacity:    capacity,
		idleTimeout: idleTimeout,
		logger:      logger,
		pending:     make([]*Job, 0, capacity),
		wake:        make(chan struct{}, 1),
		quit:        make(chan struct{}),
	}
}

// SetPlaybackHandler sets the function called to voice each job.
func (q *Queue) SetPlaybackHandler(fn PlaybackHandler) {
	q.mu.Lock()
	q.onPlay = fn
	q.mu.Unlock()
}

// SetIdleCallback sets the function called when the queue becomes idle.
func (q *Queue) SetIdleCallback(fn IdleCallback) {
	q.mu.Lock()
	q.onIdle = fn
	q.mu.Unlock()
}

// SetJobCompletedCallback sets the function called after each job.
func (q *Queue) SetJobCompletedCallback(fn JobCompletedCallback) {
	q.mu.Lock()
	q.onComplete = fn
	q.mu.Unlock()
}

// SetShutdownCallback sets the function called after the worker stops.
func (q *Queue) SetShutdownCallback(fn ShutdownCallback) {
	q.mu.Lock()
	q.onShutdown = fn
	q.mu.Unlock()
}

// Enqueue adds a job behind any pending ones.
func (q *Queue) Enqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case q.closed:
		return ErrQueueClosed
	case len(q.pending) >= q.capacity:
		return ErrQueueFull
	}

	q.pending = append(q.pending, job)
	q.logger.Debug("job enqueued", "token", job.Token, "queue_depth", len(q.pending))

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Interrupt cancels the job being voiced and clears the queue. It returns
// the pending jobs that were dropped without being started.
func (q *Queue) Interrupt() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopCurrent != nil {
		q.stopCurrent()
		q.stopCurrent = nil
	}

	dropped := q.pending
	q.pending = make([]*Job, 0, q.capacity)

	if len(dropped) > 0 || q.current != nil {
		q.logger.Info("queue interrupted", "jobs_cleared", len(dropped))
	}
	return dropped
}

// Current returns the job being voiced, or nil.
func (q *Queue) Current() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// Len returns the number of pending jobs, not counting the one being voiced.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Start begins the playback worker goroutine.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.run()
}

// Stop cancels the current job, waits for the worker and then runs the
// shutdown callback. Later calls do nothing.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.stopCurrent != nil {
		q.stopCurrent()
	}
	q.mu.Unlock()

	close(q.quit)
	q.wg.Wait()

	q.mu.Lock()
	shutdown := q.onShutdown
	q.mu.Unlock()
	if shutdown != nil {
		shutdown()
	}
}

func (q *Queue) run() {
	defer q.wg.Done()

	// idle is armed once the queue drains and disarmed by the next job.
	var idle *time.Timer
	var idleC <-chan time.Time
	disarm := func() {
		if idle != nil {
			idle.Stop()
		}
		idleC = nil
	}
	defer disarm()

	for {
		select {
		case <-q.quit:
			return
		default:
		}

		if job, ctx := q.next(); job != nil {
			disarm()
			q.play(ctx, job)
			continue
		}

		if idleC == nil && q.idleTimeout > 0 {
			idle = time.NewTimer(q.idleTimeout)
			idleC = idle.C
		}

		select {
		case <-q.quit:
			return
		case <-q.wake:
		case <-idleC:
			idleC = nil
			q.idle()
		}
	}
}

func (q *Queue) idle() {
	q.mu.Lock()
	fn := q.onIdle
	q.mu.Unlock()

	if fn != nil {
		q.logger.Info("idle timeout reached")
		fn()
	}
}

// next removes the head job and marks it current in one step, so an
// Interrupt either drops it or cancels it.
func (q *Queue) next() (*Job, context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, nil
	}
	job := q.pending[0]
	q.pending = q.pending[1:]

	ctx, cancel := context.WithCancel(context.Background())
	q.current = job
	q.stopCurrent = cancel
	return job, ctx
}

func (q *Queue) play(ctx context.Context, job *Job) {
	q.mu.Lock()
	handler := q.onPlay
	q.mu.Unlock()

	var err error
	if handler == nil {
		q.logger.Warn("no playback handler set, skipping job", "token", job.Token)
	} else {
		q.logger.Info("processing job", "token", job.Token, "text_length", len(job.Text))
		err = handler(ctx, job)
		switch {
		case err == nil:
			q.logger.Info("job completed", "token", job.Token)
		case errors.Is(err, context.Canceled):
			q.logger.Info("job cancelled", "token", job.Token)
		default:
			q.logger.Error("job failed", "token", job.Token, "error", err)
		}
	}

	q.mu.Lock()
	if q.stopCurrent != nil {
		q.stopCurrent()
	}
	q.current = nil
	q.stopCurrent = nil
	complete := q.onComplete
	q.mu.Unlock()

	if complete != nil {
		complete(job, err)
	}
}
