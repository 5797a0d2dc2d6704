package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgnsrekt/aural-odyssey/internal/assistant"
	"github.com/dgnsrekt/aural-odyssey/internal/chunker"
	"github.com/dgnsrekt/aural-odyssey/internal/narration"
)

// UploadRequest is the JSON form of POST /v1/story.
type UploadRequest struct {
	Name           string `json:"name,omitempty"`
	Text           string `json:"text"`
	ExtractChapter bool   `json:"extract_chapter,omitempty"`
}

// Section is one entry of the section listing.
type Section struct {
	Index   int    `json:"index"`
	Preview string `json:"preview"`
}

// StoryResponse describes the loaded story.
type StoryResponse struct {
	Name     string             `json:"name,omitempty"`
	Snapshot narration.Snapshot `json:"snapshot"`
	Sections []Section          `json:"sections"`
}

// SeekRequest represents the request body for /v1/story/seek.
type SeekRequest struct {
	Index *int `json:"index"`
}

// handleUpload handles POST /v1/story. It accepts a multipart "file" field
// or a JSON body, optionally reduces the book to its first chapter, and loads
// the result into the story controller. PDF books are always reduced to
// their first chapter.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	doc, extract, err := s.readUpload(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// a PDF has no text of its own; the model reads it and returns the
	// first chapter
	if doc.IsPDF() {
		extract = true
	}

	text := doc.Text
	if extract {
		if s.deps.Assistant == nil {
			s.fail(w, r, ErrAssistantDisabled)
			return
		}
		chapter, err := s.deps.Assistant.ExtractFirstChapter(r.Context(), doc)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if chapter == "" {
			s.fail(w, r, ErrNoChapter)
			return
		}
		text = chapter
	}

	chunks := chunker.Split(text)
	if err := s.deps.Story.Load(chunks); err != nil {
		s.fail(w, r, err)
		return
	}
	s.setDocument(doc)

	s.logger.Info("story loaded", "name", doc.Name, "sections", len(chunks), "extract_chapter", extract)
	writeJSON(w, http.StatusCreated, s.story(doc.Name))
}

func (s *Server) readUpload(r *http.Request) (assistant.Document, bool, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req UploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return assistant.Document{}, false, fmt.Errorf("%w: %w", ErrBadUpload, err)
		}
		doc, err := assistant.NewDocument(req.Name, "text/plain; charset=utf-8", []byte(req.Text))
		return doc, req.ExtractChapter, err
	}

	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		return assistant.Document{}, false, fmt.Errorf("%w: %w", ErrBadUpload, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return assistant.Document{}, false, fmt.Errorf("%w: %w", ErrBadUpload, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return assistant.Document{}, false, err
	}
	extract, _ := strconv.ParseBool(r.FormValue("extract_chapter"))

	doc, err := assistant.NewDocument(header.Filename, header.Header.Get("Content-Type"), data)
	return doc, extract, err
}

// handleStory handles GET /v1/story.
func (s *Server) handleStory(w http.ResponseWriter, r *http.Request) {
	doc, _ := s.document()
	writeJSON(w, http.StatusOK, s.story(doc.Name))
}

func (s *Server) story(name string) StoryResponse {
	chunks := s.deps.Story.Sections()
	sections := make([]Section, len(chunks))
	for i, c := range chunks {
		sections[i] = Section{Index: i, Preview: chunker.Preview(c, chunker.PreviewLength)}
	}
	return StoryResponse{
		Name:     name,
		Snapshot: s.deps.Story.Snapshot(),
		Sections: sections,
	}
}

// handleCommand runs a playback command against the story controller and
// returns the resulting snapshot.
func (s *Server) handleCommand(cmd func(Narrator) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cmd(s.deps.Story); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.deps.Story.Snapshot())
	}
}

// handleSeek handles POST /v1/story/seek.
func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Index == nil {
		writeError(w, http.StatusBadRequest, "index is required")
		return
	}
	if err := s.deps.Story.Seek(*req.Index); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Story.Snapshot())
}
