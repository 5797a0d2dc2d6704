package narration

import (
	"log/slog"
	"sync"

	"github.com/dgnsrekt/aural-odyssey/internal/speech"
)

// NoticeCallback is called for every notice raised by any controller.
type NoticeCallback func(Notice)

// ChangeCallback is called with a controller's state after each transition.
type ChangeCallback func(Snapshot)

// Device is the single speech slot shared by every Controller in the
// process. Issuing an utterance through it cancels whatever was playing and
// preempts the controller that owned it.
//
// Controller transitions, whether triggered by a command or by an engine
// callback, run one at a time on the device task queue. Callbacks an engine
// raises while a transition is running are queued behind it. Notices and
// snapshots are dispatched in order once the queue is empty.
type Device struct {
	engine  speech.Engine
	logger  *slog.Logger
	metrics Metrics

	mu          sync.Mutex
	queue       []task
	draining    bool
	outbox      []update
	dispatching bool
	onNotice    NoticeCallback
	onChange    ChangeCallback

	// owner is only read or written by tasks.
	owner *Controller
}

type task struct {
	fn   func()
	done chan struct{}
}

type update struct {
	notice   *Notice
	snapshot *Snapshot
}

// NewDevice wraps engine as the process-wide speech slot.
func NewDevice(engine speech.Engine, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Device{
		engine:  engine,
		logger:  logger,
		metrics: nopMetrics{},
	}
}

// SetMetrics sets the counters updated by controllers on this device.
func (d *Device) SetMetrics(m Metrics) {
	if m == nil {
		m = nopMetrics{}
	}
	d.call(func() {
		d.metrics = m
	})
}

// SetNoticeCallback sets the function called for each notice.
func (d *Device) SetNoticeCallback(fn NoticeCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onNotice = fn
}

// SetChangeCallback sets the function called after each state transition.
func (d *Device) SetChangeCallback(fn ChangeCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

// holderName returns the name of the controller currently holding the slot,
// or "" when the slot is free.
func (d *Device) holderName() string {
	var name string
	d.call(func() {
		if d.owner != nil {
			name = d.owner.name
		}
	})
	return name
}

// issue hands u to the engine on behalf of c. Any in-flight utterance is
// canceled first and a different owner is preempted.
func (d *Device) issue(c *Controller, u speech.Utterance) error {
	d.engine.Cancel()
	if d.owner != nil && d.owner != c {
		d.logger.Info("speech slot preempted", "from", d.owner.name, "to", c.name)
		d.owner.preempt()
	}
	d.owner = c
	d.metrics.UtteranceIssued(c.name)
	return d.engine.Speak(u, c)
}

// release cancels the engine if c holds the slot and frees it.
func (d *Device) release(c *Controller) {
	if d.owner != c {
		return
	}
	d.engine.Cancel()
	d.owner = nil
}

// vacate frees the slot after c finished naturally.
func (d *Device) vacate(c *Controller) {
	if d.owner == c {
		d.owner = nil
	}
}

// pause asks the engine to hold c's utterance.
func (d *Device) pause(c *Controller) {
	if d.owner == c {
		d.engine.Pause()
	}
}

func (d *Device) emitNotice(n Notice) {
	d.mu.Lock()
	d.outbox = append(d.outbox, update{notice: &n})
	d.mu.Unlock()
}

func (d *Device) emitSnapshot(s Snapshot) {
	d.mu.Lock()
	d.outbox = append(d.outbox, update{snapshot: &s})
	d.mu.Unlock()
}

// call runs fn on the task queue and waits for it. It must not be called
// from inside a task.
func (d *Device) call(fn func()) {
	done := make(chan struct{})
	d.enqueue(task{fn: fn, done: done})
	<-done
}

// post runs fn on the task queue without waiting for it.
func (d *Device) post(fn func()) {
	d.enqueue(task{fn: fn})
}

func (d *Device) enqueue(t task) {
	d.mu.Lock()
	d.queue = append(d.queue, t)
	if d.draining {
		d.mu.Unlock()
		return
	}
	d.draining = true
	d.mu.Unlock()

	d.drain()
}

func (d *Device) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.draining = false
			d.mu.Unlock()
			d.dispatch()
			return
		}
		t := d.queue[0]
		d.queue[0] = task{}
		d.queue = d.queue[1:]
		d.mu.Unlock()

		t.fn()
		if t.done != nil {
			close(t.done)
		}
	}
}

func (d *Device) dispatch() {
	d.mu.Lock()
	if d.dispatching {
		d.mu.Unlock()
		return
	}
	d.dispatching = true

	for len(d.outbox) > 0 {
		pending := d.outbox
		d.outbox = nil
		onNotice := d.onNotice
		onChange := d.onChange
		d.mu.Unlock()

		for _, u := range pending {
			switch {
			case u.notice != nil && onNotice != nil:
				onNotice(*u.notice)
			case u.snapshot != nil && onChange != nil:
				onChange(*u.snapshot)
			}
		}

		d.mu.Lock()
	}

	d.dispatching = false
	d.mu.Unlock()
}
