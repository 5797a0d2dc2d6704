package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dgnsrekt/aural-odyssey/internal/api"
	"github.com/dgnsrekt/aural-odyssey/internal/narration"
	"github.com/gorilla/websocket"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running narration service.
type Client struct {
	cfg        *Config
	logger     *slog.Logger
	httpClient *http.Client
	dialer     *websocket.Dialer

	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewClient creates a new remote control client.
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		dialer:     websocket.DefaultDialer,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// Status returns the loaded story and its playback state.
func (c *Client) Status(ctx context.Context) (api.StoryResponse, error) {
	var resp api.StoryResponse
	err := c.do(ctx, http.MethodGet, "/v1/story", nil, &resp)
	return resp, err
}

// Play starts or toggles story narration.
func (c *Client) Play(ctx context.Context) (narration.Snapshot, error) {
	return c.command(ctx, "play")
}

// Pause holds story narration.
func (c *Client) Pause(ctx context.Context) (narration.Snapshot, error) {
	return c.command(ctx, "pause")
}

// Resume continues held story narration.
func (c *Client) Resume(ctx context.Context) (narration.Snapshot, error) {
	return c.command(ctx, "resume")
}

// Stop halts story narration.
func (c *Client) Stop(ctx context.Context) (narration.Snapshot, error) {
	return c.command(ctx, "stop")
}

// Seek jumps to the section at index.
func (c *Client) Seek(ctx context.Context, index int) (narration.Snapshot, error) {
	var snap narration.Snapshot
	err := c.do(ctx, http.MethodPost, "/v1/story/seek", api.SeekRequest{Index: &index}, &snap)
	return snap, err
}

// Speak reads text aloud through the responder.
func (c *Client) Speak(ctx context.Context, text string) (narration.Snapshot, error) {
	var resp api.SpeakResponse
	err := c.do(ctx, http.MethodPost, "/v1/speak", api.SpeakRequest{Text: text}, &resp)
	return resp.Snapshot, err
}

// Upload loads the book at path as the story. PDF books, and text books
// when extract is set, are reduced to their first chapter by the assistant.
func (c *Client) Upload(ctx context.Context, path string, extract bool) (api.StoryResponse, error) {
	var resp api.StoryResponse

	data, err := os.ReadFile(path)
	if err != nil {
		return resp, fmt.Errorf("failed to read book: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {mime.FormatMediaType("form-data", map[string]string{
			"name":     "file",
			"filename": filepath.Base(path),
		})},
		"Content-Type": {documentType(path, data)},
	})
	if err != nil {
		return resp, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return resp, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.WriteField("extract_chapter", strconv.FormatBool(extract)); err != nil {
		return resp, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return resp, fmt.Errorf("failed to build upload: %w", err)
	}

	err = c.send(ctx, http.MethodPost, "/v1/story", &body, mw.FormDataContentType(), &resp)
	return resp, err
}

// documentType picks the upload content type from the file extension,
// falling back to sniffing the data.
func documentType(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

// Ask answers a question about the loaded book.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	var resp api.AskResponse
	err := c.do(ctx, http.MethodPost, "/v1/ask", api.AskRequest{Question: question}, &resp)
	return resp.Answer, err
}

// Chat sends one message to the reading assistant. With speak set the reply
// is also read aloud.
func (c *Client) Chat(ctx context.Context, message string, speak bool) (api.ChatResponse, error) {
	var resp api.ChatResponse
	err := c.do(ctx, http.MethodPost, "/v1/chat", api.ChatRequest{Message: message, Speak: speak}, &resp)
	return resp, err
}

func (c *Client) command(ctx context.Context, name string) (narration.Snapshot, error) {
	var snap narration.Snapshot
	err := c.do(ctx, http.MethodPost, "/v1/story/"+name, nil, &snap)
	return snap, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if in == nil {
		return c.send(ctx, method, path, nil, "", out)
	}
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.send(ctx, method, path, bytes.NewReader(data), "application/json", out)
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(c.cfg.APIURL, "/")+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.authorize(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		var e api.ErrorResponse
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(h http.Header) {
	if c.cfg.BearerToken != "" {
		h.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}
}

// Watch streams narration events to fn until ctx is canceled, reconnecting
// with exponential backoff when the stream drops.
func (c *Client) Watch(ctx context.Context, fn func(api.Event)) error {
	backoff := c.minBackoff

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		connected, err := c.watch(ctx, fn)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = c.minBackoff
		}
		c.logger.Warn("event stream dropped, reconnecting", "error", err, "backoff", backoff)

		// Wait before reconnecting
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		// Exponential backoff
		backoff = backoff * 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

// watch runs one connection. It reports whether the connection was
// established.
func (c *Client) watch(ctx context.Context, fn func(api.Event)) (bool, error) {
	u, err := eventsURL(c.cfg.APIURL)
	if err != nil {
		return false, err
	}

	header := make(http.Header)
	c.authorize(header)

	conn, resp, err := c.dialer.DialContext(ctx, u, header)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("failed to connect: %w (status %d)", err, resp.StatusCode)
		}
		return false, fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	c.logger.Info("connected to event stream", "url", u)

	// Unblock the read when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var ev api.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return true, err
		}
		fn(ev)
	}
}

// eventsURL maps the API base URL to the websocket event stream URL.
func eventsURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/events"
	return u.String(), nil
}
