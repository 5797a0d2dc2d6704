// Package api exposes narration control, uploads, settings and the assistant
// over HTTP, plus a websocket stream of narration events.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dgnsrekt/aural-odyssey/internal/assistant"
	"github.com/dgnsrekt/aural-odyssey/internal/config"
	"github.com/dgnsrekt/aural-odyssey/internal/narration"
	"github.com/dgnsrekt/aural-odyssey/internal/voices"
)

// Narrator is the playback controller surface the API drives.
type Narrator interface {
	Load(chunks []string) error
	Play() error
	Pause() error
	Resume() error
	Stop(showNotice bool) error
	Seek(index int) error
	Snapshot() narration.Snapshot
	Sections() []string
}

// VoiceSettings exposes the voice catalogue and saved defaults.
type VoiceSettings interface {
	Voices() []voices.Voice
	Current(ctx context.Context) (voices.Defaults, error)
	SetDefaults(ctx context.Context, voice string, rate float64) error
}

// Assistant runs the language model flows.
type Assistant interface {
	ExtractFirstChapter(ctx context.Context, doc assistant.Document) (string, error)
	AnswerQuestion(ctx context.Context, doc assistant.Document, question string) (string, error)
	Chat(ctx context.Context, history []assistant.Message, message string) (string, error)
}

// Deps are the collaborators behind the API. Assistant and Metrics may be
// nil, which disables their routes.
type Deps struct {
	Story     Narrator
	Responder Narrator
	Voices    VoiceSettings
	Assistant Assistant
	Metrics   http.Handler
	Hub       *Hub
}

// Server handles HTTP API requests.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	server *http.Server
	deps   Deps

	mu  sync.Mutex
	doc *assistant.Document
}

// New creates a new API server.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		deps:   deps,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/healthz", s.handleHealthz)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	mux.HandleFunc("POST /v1/story", s.withAuth(s.handleUpload))
	mux.HandleFunc("GET /v1/story", s.withAuth(s.handleStory))
	mux.HandleFunc("POST /v1/story/play", s.withAuth(s.handleCommand(func(n Narrator) error { return n.Play() })))
	mux.HandleFunc("POST /v1/story/pause", s.withAuth(s.handleCommand(func(n Narrator) error { return n.Pause() })))
	mux.HandleFunc("POST /v1/story/resume", s.withAuth(s.handleCommand(func(n Narrator) error { return n.Resume() })))
	mux.HandleFunc("POST /v1/story/stop", s.withAuth(s.handleCommand(func(n Narrator) error { return n.Stop(true) })))
	mux.HandleFunc("POST /v1/story/seek", s.withAuth(s.handleSeek))

	mux.HandleFunc("GET /v1/voices", s.withAuth(s.handleVoices))
	mux.HandleFunc("GET /v1/settings", s.withAuth(s.handleGetSettings))
	mux.HandleFunc("PUT /v1/settings", s.withAuth(s.handlePutSettings))

	mux.HandleFunc("POST /v1/ask", s.withAuth(s.handleAsk))
	mux.HandleFunc("POST /v1/chat", s.withAuth(s.handleChat))
	mux.HandleFunc("POST /v1/speak", s.withAuth(s.handleSpeak))

	if deps.Hub != nil {
		mux.HandleFunc("GET /v1/events", s.withAuth(s.handleEvents))
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) document() (assistant.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return assistant.Document{}, false
	}
	return *s.doc, true
}

func (s *Server) setDocument(doc assistant.Document) {
	s.mu.Lock()
	s.doc = &doc
	s.mu.Unlock()
}
