package voices

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryPrefs is an in-process Preferences.
type memoryPrefs struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newMemoryPrefs() *memoryPrefs {
	return &memoryPrefs{values: make(map[string]string)}
}

func (m *memoryPrefs) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryPrefs) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	return nil
}

var catalogue = []Voice{
	{ID: "samantha", Lang: "en-US", Name: "Samantha"},
	{ID: "lekha", Lang: "hi-IN", Name: "Lekha"},
}

func TestResolver_Defaults(t *testing.T) {
	r := NewResolver(newMemoryPrefs(), catalogue, testLogger())

	voice, rate, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if voice != "lekha" || rate != 1 {
		t.Errorf("Resolve() = %s@%v, want lekha@1", voice, rate)
	}
}

func TestResolver_SavedPreferences(t *testing.T) {
	prefs := newMemoryPrefs()
	r := NewResolver(prefs, catalogue, testLogger())

	if err := r.SetDefaults(context.Background(), "samantha", 1.75); err != nil {
		t.Fatalf("SetDefaults() error = %v", err)
	}
	if prefs.values[KeyPlaybackSpeed] != "1.75" {
		t.Errorf("stored speed = %q", prefs.values[KeyPlaybackSpeed])
	}

	voice, rate, _ := r.Resolve()
	if voice != "samantha" || rate != 1.75 {
		t.Errorf("Resolve() = %s@%v, want samantha@1.75", voice, rate)
	}
}

func TestResolver_StoredRateClamped(t *testing.T) {
	prefs := newMemoryPrefs()
	prefs.values[KeyPlaybackSpeed] = "42"
	r := NewResolver(prefs, catalogue, testLogger())

	if _, rate, _ := r.Resolve(); rate != 1 {
		t.Errorf("rate = %v, want 1", rate)
	}
}

func TestResolver_SetDefaultsValidation(t *testing.T) {
	r := NewResolver(newMemoryPrefs(), catalogue, testLogger())
	ctx := context.Background()

	if err := r.SetDefaults(ctx, "nobody", 1); !errors.Is(err, ErrUnknownVoice) {
		t.Errorf("unknown voice error = %v, want ErrUnknownVoice", err)
	}
	if err := r.SetDefaults(ctx, "lekha", 11); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("rate 11 error = %v, want ErrInvalidRate", err)
	}
}

func TestResolver_NoVoices(t *testing.T) {
	r := NewResolver(newMemoryPrefs(), nil, testLogger())
	if _, _, err := r.Resolve(); !errors.Is(err, ErrNoVoices) {
		t.Errorf("Resolve() error = %v, want ErrNoVoices", err)
	}
}

func TestResolver_StorageErrorFallsBack(t *testing.T) {
	prefs := newMemoryPrefs()
	prefs.err = errors.New("disk on fire")
	r := NewResolver(prefs, catalogue, testLogger())

	voice, rate, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if voice != "lekha" || rate != 1 {
		t.Errorf("Resolve() = %s@%v, want lekha@1", voice, rate)
	}
}

func TestResolver_WithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, "")
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer store.Close()

	r := NewResolver(store, catalogue, testLogger())
	if err := r.SetDefaults(ctx, "samantha", 0.5); err != nil {
		t.Fatalf("SetDefaults() error = %v", err)
	}
	got, err := r.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if got != (Defaults{Voice: "samantha", Rate: 0.5}) {
		t.Errorf("Current() = %+v", got)
	}
}
