package tts

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrEngineNotFound is returned by Default on an empty registry.
	ErrEngineNotFound = errors.New("TTS engine not found")
	// ErrEngineExists is returned when an engine name is registered twice.
	ErrEngineExists = errors.New("TTS engine already registered")
)

// Registry holds the synthesis engines available to the playback pipeline,
// in registration order. The first one is the default.
type Registry struct {
	mu      sync.RWMutex
	engines []Engine
}

// NewRegistry creates a registry holding the given engines.
func NewRegistry(engines ...Engine) (*Registry, error) {
	r := &Registry{}
	for _, e := range engines {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends an engine.
func (r *Registry) Register(engine Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := engine.Name()
	if slices.ContainsFunc(r.engines, func(e Engine) bool { return e.Name() == name }) {
		return fmt.Errorf("%w: %s", ErrEngineExists, name)
	}
	r.engines = append(r.engines, engine)
	return nil
}

// Default returns the first registered engine.
func (r *Registry) Default() (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.engines) == 0 {
		return nil, ErrEngineNotFound
	}
	return r.engines[0], nil
}

// List returns the registered engine names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.engines))
	for i, e := range r.engines {
		names[i] = e.Name()
	}
	slices.Sort(names)
	return names
}
