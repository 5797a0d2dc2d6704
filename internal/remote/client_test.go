package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/aural-odyssey/internal/api"
	"github.com/dgnsrekt/aural-odyssey/internal/narration"
	"github.com/gorilla/websocket"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   string
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func() []recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recordedRequest

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{r.Method, r.URL.Path, r.Header.Get("Authorization"), string(body)})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(ts.Close)

	cfg := &Config{APIURL: ts.URL + "/", BearerToken: "secret", Timeout: 5 * time.Second}
	recorded := func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), reqs...)
	}
	return NewClient(cfg, newTestLogger()), recorded
}

func TestCommands(t *testing.T) {
	client, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(narration.Snapshot{Controller: "story", Phase: narration.Paused, Cursor: 2})
	})
	ctx := context.Background()

	calls := []struct {
		path string
		fn   func() (narration.Snapshot, error)
	}{
		{"/v1/story/play", func() (narration.Snapshot, error) { return client.Play(ctx) }},
		{"/v1/story/pause", func() (narration.Snapshot, error) { return client.Pause(ctx) }},
		{"/v1/story/resume", func() (narration.Snapshot, error) { return client.Resume(ctx) }},
		{"/v1/story/stop", func() (narration.Snapshot, error) { return client.Stop(ctx) }},
		{"/v1/story/seek", func() (narration.Snapshot, error) { return client.Seek(ctx, 4) }},
	}

	for i, call := range calls {
		snap, err := call.fn()
		if err != nil {
			t.Fatalf("%s: error = %v", call.path, err)
		}
		if snap.Phase != narration.Paused || snap.Cursor != 2 {
			t.Errorf("%s: snapshot = %+v", call.path, snap)
		}
		got := reqs()[i]
		if got.method != http.MethodPost || got.path != call.path {
			t.Errorf("request %d = %s %s, want POST %s", i, got.method, got.path, call.path)
		}
		if got.auth != "Bearer secret" {
			t.Errorf("%s: Authorization = %q", call.path, got.auth)
		}
	}

	if body := reqs()[4].body; body != `{"index":4}` {
		t.Errorf("seek body = %s", body)
	}
}

func TestStatusAndSpeak(t *testing.T) {
	client, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/story":
			json.NewEncoder(w).Encode(api.StoryResponse{
				Name:     "book.txt",
				Sections: []api.Section{{Index: 0, Preview: "Once"}},
			})
		case "/v1/speak":
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(api.SpeakResponse{Snapshot: narration.Snapshot{Controller: "responder"}})
		}
	})
	ctx := context.Background()

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Name != "book.txt" || len(status.Sections) != 1 {
		t.Errorf("status = %+v", status)
	}

	snap, err := client.Speak(ctx, "hello")
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if snap.Controller != "responder" {
		t.Errorf("snapshot = %+v", snap)
	}
	if body := reqs()[1].body; body != `{"text":"hello"}` {
		t.Errorf("speak body = %s", body)
	}
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name        string
		file        string
		data        string
		extract     bool
		wantType    string
		wantExtract string
	}{
		{"text", "tale.txt", "Once upon a time.", false, "text/plain", "false"},
		{"text extract", "tale.txt", "Chapter 1\nOnce.", true, "text/plain", "true"},
		{"pdf", "scan.pdf", "%PDF-1.7 pages", false, "application/pdf", "false"},
		{"pdf without extension", "scan", "%PDF-1.4 pages", false, "application/pdf", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.data), 0o644); err != nil {
				t.Fatal(err)
			}

			var gotType, gotName, gotData, gotExtract, gotAuth string
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/v1/story" {
					t.Errorf("request = %s %s", r.Method, r.URL.Path)
				}
				gotAuth = r.Header.Get("Authorization")
				file, header, err := r.FormFile("file")
				if err != nil {
					t.Errorf("FormFile() error = %v", err)
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				defer file.Close()
				data, _ := io.ReadAll(file)
				gotData = string(data)
				gotName = header.Filename
				gotType, _, _ = mime.ParseMediaType(header.Header.Get("Content-Type"))
				gotExtract = r.FormValue("extract_chapter")

				w.WriteHeader(http.StatusCreated)
				json.NewEncoder(w).Encode(api.StoryResponse{
					Name:     header.Filename,
					Sections: []api.Section{{Index: 0, Preview: "Once"}},
				})
			}))
			defer ts.Close()

			client := NewClient(&Config{APIURL: ts.URL, BearerToken: "secret", Timeout: 5 * time.Second}, newTestLogger())
			resp, err := client.Upload(context.Background(), path, tt.extract)
			if err != nil {
				t.Fatalf("Upload() error = %v", err)
			}
			if resp.Name != tt.file || len(resp.Sections) != 1 {
				t.Errorf("response = %+v", resp)
			}
			if gotName != tt.file || gotData != tt.data {
				t.Errorf("uploaded %q = %q", gotName, gotData)
			}
			if gotType != tt.wantType {
				t.Errorf("content type = %q, want %q", gotType, tt.wantType)
			}
			if gotExtract != tt.wantExtract {
				t.Errorf("extract_chapter = %q, want %q", gotExtract, tt.wantExtract)
			}
			if gotAuth != "Bearer secret" {
				t.Errorf("Authorization = %q", gotAuth)
			}
		})
	}
}

func TestUpload_MissingFile(t *testing.T) {
	client, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, err := client.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), false); err == nil {
		t.Fatal("Upload() error = nil, want read error")
	}
	if n := len(reqs()); n != 0 {
		t.Errorf("sent %d requests, want 0", n)
	}
}

func TestAskAndChat(t *testing.T) {
	client, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/ask":
			json.NewEncoder(w).Encode(api.AskResponse{Answer: "A fox."})
		case "/v1/chat":
			json.NewEncoder(w).Encode(api.ChatResponse{Reply: "Hello reader.", Spoken: true})
		}
	})
	ctx := context.Background()

	answer, err := client.Ask(ctx, "Who is the hero?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer != "A fox." {
		t.Errorf("answer = %q", answer)
	}

	reply, err := client.Chat(ctx, "hi", true)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if reply.Reply != "Hello reader." || !reply.Spoken {
		t.Errorf("reply = %+v", reply)
	}

	got := reqs()
	if got[0].body != `{"question":"Who is the hero?"}` {
		t.Errorf("ask body = %s", got[0].body)
	}
	if got[1].body != `{"message":"hi","speak":true}` {
		t.Errorf("chat body = %s", got[1].body)
	}
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"json error", `{"error":"narration is not paused"}`, "narration is not paused"},
		{"plain body", "bad gateway\n", "bad gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				io.WriteString(w, tt.body)
			})

			_, err := client.Resume(context.Background())
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != http.StatusConflict || apiErr.Message != tt.message {
				t.Errorf("APIError = %+v", apiErr)
			}
		})
	}
}

func TestEventsURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", "ws://localhost:8080/v1/events", false},
		{"https://narrator.example/", "wss://narrator.example/v1/events", false},
		{"https://narrator.example/aural", "wss://narrator.example/aural/v1/events", false},
		{"ftp://narrator.example", "", true},
	}

	for _, tt := range tests {
		got, err := eventsURL(tt.base)
		if (err != nil) != tt.wantErr {
			t.Errorf("eventsURL(%s) error = %v, wantErr %v", tt.base, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("eventsURL(%s) = %s, want %s", tt.base, got, tt.want)
		}
	}
}

func TestWatchReconnects(t *testing.T) {
	var connections atomic.Int32
	upgrader := websocket.Upgrader{}

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/events" || r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := connections.Add(1)
		conn.WriteJSON(api.SnapshotEvent(narration.Snapshot{Controller: "story", Cursor: int(n)}))
		// drop the connection to force a reconnect
		conn.Close()
	})
	client.minBackoff = 10 * time.Millisecond
	client.maxBackoff = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan api.Event, 8)
	done := make(chan error, 1)
	go func() {
		done <- client.Watch(ctx, func(ev api.Event) {
			select {
			case events <- ev:
			default:
			}
		})
	}()

	for want := 1; want <= 2; want++ {
		select {
		case ev := <-events:
			if ev.Type != api.EventSnapshot || ev.Snapshot.Cursor != want {
				t.Errorf("event %d = %+v", want, ev)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchBackoffOnRefusal(t *testing.T) {
	var attempts atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	client.minBackoff = 5 * time.Millisecond
	client.maxBackoff = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := client.Watch(ctx, func(api.Event) { t.Error("unexpected event") }); err != nil {
		t.Errorf("Watch() error = %v", err)
	}
	if n := attempts.Load(); n < 3 {
		t.Errorf("attempts = %d, want repeated reconnects", n)
	}
}
