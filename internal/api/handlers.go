package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/dgnsrekt/aural-odyssey/internal/assistant"
	"github.com/dgnsrekt/aural-odyssey/internal/chunker"
	"github.com/dgnsrekt/aural-odyssey/internal/narration"
	"github.com/dgnsrekt/aural-odyssey/internal/voices"
)

var (
	// ErrAssistantDisabled is returned by assistant routes without an LLM key.
	ErrAssistantDisabled = errors.New("assistant is not configured")
	// ErrNoDocument is returned by /v1/ask before a book is uploaded.
	ErrNoDocument = errors.New("no book loaded")
	// ErrBadUpload is returned for a malformed story upload.
	ErrBadUpload = errors.New("invalid upload")
	// ErrNoChapter is returned when the first chapter cannot be determined.
	ErrNoChapter = errors.New("could not determine the first chapter")
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the response body for /v1/healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// SpeakRequest represents the request body for /v1/speak.
type SpeakRequest struct {
	Text string `json:"text"`
}

// SpeakResponse represents the response body for /v1/speak.
type SpeakResponse struct {
	Snapshot narration.Snapshot `json:"snapshot"`
}

// VoicesResponse represents the response body for /v1/voices.
type VoicesResponse struct {
	Voices       []voices.Voice  `json:"voices"`
	Defaults     voices.Defaults `json:"defaults"`
	SpeedOptions []float64       `json:"speed_options"`
}

// SettingsRequest represents the request body for PUT /v1/settings.
type SettingsRequest struct {
	Voice string  `json:"voice"`
	Rate  float64 `json:"rate"`
}

// AskRequest represents the request body for /v1/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse represents the response body for /v1/ask.
type AskResponse struct {
	Answer string `json:"answer"`
}

// ChatRequest represents the request body for /v1/chat.
type ChatRequest struct {
	Message string              `json:"message"`
	History []assistant.Message `json:"history,omitempty"`
	Speak   bool                `json:"speak,omitempty"`
}

// ChatResponse represents the response body for /v1/chat.
type ChatResponse struct {
	Reply  string `json:"reply"`
	Spoken bool   `json:"spoken"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, narration.ErrOutOfRange),
		errors.Is(err, voices.ErrUnknownVoice),
		errors.Is(err, voices.ErrInvalidRate),
		errors.Is(err, ErrBadUpload),
		errors.Is(err, assistant.ErrEmptyQuestion),
		errors.Is(err, assistant.ErrEmptyDocument):
		return http.StatusBadRequest
	case errors.Is(err, assistant.ErrUnsupportedDocument):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, narration.ErrNothingToPlay),
		errors.Is(err, narration.ErrNotSpeaking),
		errors.Is(err, narration.ErrNotPaused),
		errors.Is(err, ErrNoDocument):
		return http.StatusConflict
	case errors.Is(err, ErrNoChapter):
		return http.StatusUnprocessableEntity
	case errors.Is(err, narration.ErrNoVoice),
		errors.Is(err, narration.ErrClosed),
		errors.Is(err, voices.ErrNoVoices),
		errors.Is(err, ErrAssistantDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, assistant.ErrNoChoices):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.Warn("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

// maxRequestBytes caps JSON request bodies other than story uploads.
const maxRequestBytes = 1 << 20

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("failed to decode request", "path", r.URL.Path, "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// handleHealthz handles GET /v1/healthz requests.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleVoices handles GET /v1/voices requests.
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	defaults, err := s.deps.Voices.Current(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, VoicesResponse{
		Voices:       s.deps.Voices.Voices(),
		Defaults:     defaults,
		SpeedOptions: voices.SpeedOptions,
	})
}

// handleGetSettings handles GET /v1/settings requests.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	defaults, err := s.deps.Voices.Current(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, defaults)
}

// handlePutSettings handles PUT /v1/settings requests. The new defaults apply
// from the next narrated section.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.deps.Voices.SetDefaults(r.Context(), req.Voice, req.Rate); err != nil {
		s.fail(w, r, err)
		return
	}
	s.handleGetSettings(w, r)
}

// handleSpeak handles POST /v1/speak requests. The text is read aloud by the
// responder, preempting any story narration.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req SpeakRequest
	if !s.decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	if n := utf8.RuneCountInString(req.Text); n > s.cfg.MaxTextLength {
		s.logger.Warn("text exceeds max length", "length", n, "max", s.cfg.MaxTextLength)
		writeError(w, http.StatusBadRequest, "text exceeds maximum length")
		return
	}

	if err := s.say(req.Text); err != nil {
		s.fail(w, r, err)
		return
	}

	s.logger.Info("speak request accepted", "text_length", len(req.Text))
	writeJSON(w, http.StatusAccepted, SpeakResponse{Snapshot: s.deps.Responder.Snapshot()})
}

// say loads text into the responder and starts it.
func (s *Server) say(text string) error {
	if err := s.deps.Responder.Load(chunker.Split(text)); err != nil {
		return err
	}
	return s.deps.Responder.Play()
}

// handleAsk handles POST /v1/ask requests about the uploaded book.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		s.fail(w, r, ErrAssistantDisabled)
		return
	}

	var req AskRequest
	if !s.decode(w, r, &req) {
		return
	}

	doc, ok := s.document()
	if !ok {
		s.fail(w, r, ErrNoDocument)
		return
	}

	answer, err := s.deps.Assistant.AnswerQuestion(r.Context(), doc, req.Question)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AskResponse{Answer: answer})
}

// handleChat handles POST /v1/chat requests. With speak set the reply is
// also read aloud.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		s.fail(w, r, ErrAssistantDisabled)
		return
	}

	var req ChatRequest
	if !s.decode(w, r, &req) {
		return
	}

	reply, err := s.deps.Assistant.Chat(r.Context(), req.History, req.Message)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := ChatResponse{Reply: reply}
	if req.Speak {
		if err := s.say(reply); err != nil {
			s.logger.Warn("failed to read chat reply aloud", "error", err)
		} else {
			resp.Spoken = true
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
