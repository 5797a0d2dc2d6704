package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/dgnsrekt/aural-odyssey/internal/api"
	"github.com/dgnsrekt/aural-odyssey/internal/logging"
	"github.com/dgnsrekt/aural-odyssey/internal/narration"
	"github.com/dgnsrekt/aural-odyssey/internal/remote"
)

const usage = `usage: aural-ctl <command>

commands:
  status           show the loaded story and playback state
  upload [-x] FILE load a text or PDF book as the story
                   (-x narrates only the first chapter of a text book)
  play             start, pause or resume story narration
  pause            pause story narration
  resume           resume story narration
  stop             stop story narration
  seek N           narrate section N (zero based)
  speak TEXT       read TEXT aloud
  ask QUESTION     ask the assistant about the loaded book
  chat MESSAGE     chat with the assistant and read the reply aloud
  watch            stream narration events
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := remote.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	client := remote.NewClient(cfg, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, client, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid arguments")

func run(ctx context.Context, client *remote.Client, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "status":
		status, err := client.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(out, status)
		return nil

	case "upload":
		extract := false
		if len(args) > 0 && args[0] == "-x" {
			extract = true
			args = args[1:]
		}
		if len(args) != 1 {
			return errUsage
		}
		status, err := client.Upload(ctx, args[0], extract)
		if err != nil {
			return err
		}
		printStatus(out, status)
		return nil

	case "play", "pause", "resume", "stop":
		commands := map[string]func(context.Context) (narration.Snapshot, error){
			"play":   client.Play,
			"pause":  client.Pause,
			"resume": client.Resume,
			"stop":   client.Stop,
		}
		snap, err := commands[cmd](ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, formatSnapshot(snap))
		return nil

	case "seek":
		if len(args) != 1 {
			return errUsage
		}
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return errUsage
		}
		snap, err := client.Seek(ctx, index)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, formatSnapshot(snap))
		return nil

	case "speak":
		text := strings.Join(args, " ")
		if strings.TrimSpace(text) == "" {
			return errUsage
		}
		snap, err := client.Speak(ctx, text)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, formatSnapshot(snap))
		return nil

	case "ask":
		question := strings.Join(args, " ")
		if strings.TrimSpace(question) == "" {
			return errUsage
		}
		answer, err := client.Ask(ctx, question)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, answer)
		return nil

	case "chat":
		message := strings.Join(args, " ")
		if strings.TrimSpace(message) == "" {
			return errUsage
		}
		reply, err := client.Chat(ctx, message, true)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply.Reply)
		return nil

	case "watch":
		return client.Watch(ctx, func(ev api.Event) {
			fmt.Fprintln(out, formatEvent(ev))
		})

	default:
		return errUsage
	}
}

func printStatus(out io.Writer, status api.StoryResponse) {
	if status.Name != "" {
		fmt.Fprintf(out, "book: %s\n", status.Name)
	}
	fmt.Fprintln(out, formatSnapshot(status.Snapshot))
	for _, s := range status.Sections {
		marker := " "
		if s.Index == status.Snapshot.Highlight {
			marker = ">"
		}
		fmt.Fprintf(out, "%s Section %d: %s\n", marker, s.Index+1, s.Preview)
	}
}

func formatSnapshot(s narration.Snapshot) string {
	state := s.Phase.String()
	if s.Stopped {
		state = "stopped"
	}
	if s.Cursor < 0 {
		return fmt.Sprintf("%s: %s, %d sections", s.Controller, state, s.Sections)
	}
	return fmt.Sprintf("%s: %s, section %d of %d", s.Controller, state, s.Cursor+1, s.Sections)
}

func formatEvent(ev api.Event) string {
	switch {
	case ev.Notice != nil:
		n := ev.Notice
		line := fmt.Sprintf("[%s] %s: %s", n.Controller, n.Title, n.Message)
		if n.Reason != "" {
			line += " (" + string(n.Reason) + ")"
		}
		return line
	case ev.Snapshot != nil:
		return formatSnapshot(*ev.Snapshot)
	default:
		return ev.Type
	}
}
