package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/mattn/go-shellwords"
)

const (
	// DefaultWordsPerMinute is the {wpm} value substituted at rate 1.0.
	DefaultWordsPerMinute = 175
	// DefaultMaxTextLength bounds a single utterance, in runes.
	DefaultMaxTextLength = 32767
)

var (
	// ErrEmptyCommand is returned when the speech command template is blank.
	ErrEmptyCommand = errors.New("speech command is empty")
	// errPauseUnsupported is returned where processes cannot be suspended.
	errPauseUnsupported = errors.New("pause is not supported on this platform")
)

// ExecConfig configures an ExecEngine.
type ExecConfig struct {
	// Command is a shell-style template run once per utterance. The
	// placeholders {voice}, {rate}, {wpm} and {text} are substituted in
	// every argument. Without {text}, the text is written to stdin.
	Command string
	// WordsPerMinute is the {wpm} value at rate 1.0.
	WordsPerMinute int
	// MaxTextLength is the longest text accepted, in runes.
	MaxTextLength int
}

// ExecEngine voices utterances by running a local speech program such as
// espeak-ng or say, one process per utterance.
type ExecEngine struct {
	args    []string
	cfg     ExecConfig
	logger  *slog.Logger
	mu      sync.Mutex
	current *execUtterance
}

type execUtterance struct {
	token    string
	sink     Sink
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	stderr   *bytes.Buffer
	canceled bool
	paused   bool
}

// NewExecEngine parses the command template and returns an engine for it.
func NewExecEngine(cfg ExecConfig, logger *slog.Logger) (*ExecEngine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse speech command: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	if cfg.WordsPerMinute <= 0 {
		cfg.WordsPerMinute = DefaultWordsPerMinute
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = DefaultMaxTextLength
	}
	return &ExecEngine{
		args:   args,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Name returns the engine identifier.
func (e *ExecEngine) Name() string {
	return "exec"
}

// expand substitutes the utterance into the command template. The second
// result reports whether the text must be written to stdin.
func (e *ExecEngine) expand(u Utterance) ([]string, bool) {
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	wpm := int(math.Round(float64(e.cfg.WordsPerMinute) * rate))

	replacer := strings.NewReplacer(
		"{voice}", u.Voice,
		"{rate}", strconv.FormatFloat(rate, 'f', 2, 64),
		"{wpm}", strconv.Itoa(wpm),
		"{text}", u.Text,
	)

	useStdin := true
	out := make([]string, 0, len(e.args))
	for _, arg := range e.args {
		if strings.Contains(arg, "{text}") {
			useStdin = false
		}
		out = append(out, replacer.Replace(arg))
	}
	return out, useStdin
}

// Speak cancels any in-flight utterance and starts a process for u.
// Failures to start are reported through sink as error callbacks.
func (e *ExecEngine) Speak(u Utterance, sink Sink) error {
	if sink == nil {
		return ErrNilSink
	}

	e.Cancel()

	if utf8.RuneCountInString(u.Text) > e.cfg.MaxTextLength {
		sink.Deliver(Event{Kind: EventError, Token: u.Token, Reason: ReasonTextTooLong})
		return nil
	}

	args, useStdin := e.expand(u)
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if useStdin {
		cmd.Stdin = strings.NewReader(u.Text)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		reason := ReasonSynthesisFailed
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			reason = ReasonSynthesisUnavailable
		}
		e.logger.Error("speech command failed to start", "command", args[0], "error", err)
		sink.Deliver(Event{Kind: EventError, Token: u.Token, Reason: reason, Err: err})
		return nil
	}

	cur := &execUtterance{
		token:  u.Token,
		sink:   sink,
		cmd:    cmd,
		cancel: cancel,
		stderr: &stderr,
	}
	e.mu.Lock()
	e.current = cur
	e.mu.Unlock()

	e.logger.Debug("speech command started", "token", u.Token, "pid", cmd.Process.Pid)
	sink.Deliver(Event{Kind: EventStart, Token: u.Token})

	go e.wait(cur)
	return nil
}

func (e *ExecEngine) wait(cur *execUtterance) {
	err := cur.cmd.Wait()
	cur.cancel()

	e.mu.Lock()
	canceled := cur.canceled
	if e.current == cur {
		e.current = nil
	}
	e.mu.Unlock()

	switch {
	case canceled:
		cur.sink.Deliver(Event{Kind: EventError, Token: cur.token, Reason: ReasonCanceled})
	case err != nil:
		e.logger.Error("speech command failed",
			"token", cur.token,
			"error", err,
			"stderr", cur.stderr.String(),
		)
		cur.sink.Deliver(Event{
			Kind:   EventError,
			Token:  cur.token,
			Reason: ReasonSynthesisFailed,
			Err:    fmt.Errorf("%w: %s", err, strings.TrimSpace(cur.stderr.String())),
		})
	default:
		cur.sink.Deliver(Event{Kind: EventEnd, Token: cur.token})
	}
}

// Cancel kills the process voicing the in-flight utterance.
func (e *ExecEngine) Cancel() {
	e.mu.Lock()
	cur := e.current
	e.current = nil
	if cur != nil {
		cur.canceled = true
	}
	e.mu.Unlock()

	if cur != nil {
		cur.cancel()
	}
}

// Pause suspends the speech process. There is no acknowledgment on platforms
// without job control.
func (e *ExecEngine) Pause() {
	e.mu.Lock()
	cur := e.current
	if cur == nil || cur.paused {
		e.mu.Unlock()
		return
	}
	if err := suspendProcess(cur.cmd.Process); err != nil {
		e.mu.Unlock()
		e.logger.Debug("cannot pause speech command", "token", cur.token, "error", err)
		return
	}
	cur.paused = true
	e.mu.Unlock()

	cur.sink.Deliver(Event{Kind: EventPause, Token: cur.token})
}

// Resume continues a suspended speech process.
func (e *ExecEngine) Resume() {
	e.mu.Lock()
	cur := e.current
	if cur == nil || !cur.paused {
		e.mu.Unlock()
		return
	}
	if err := continueProcess(cur.cmd.Process); err != nil {
		e.mu.Unlock()
		e.logger.Debug("cannot resume speech command", "token", cur.token, "error", err)
		return
	}
	cur.paused = false
	e.mu.Unlock()

	cur.sink.Deliver(Event{Kind: EventResume, Token: cur.token})
}
