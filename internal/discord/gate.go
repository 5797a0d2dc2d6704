package discord

import (
	"context"
	"sync"
)

// gate holds a frame sender between Hold and Release.
type gate struct {
	mu   sync.Mutex
	held bool
	open chan struct{}
}

func newGate() *gate {
	g := &gate{open: make(chan struct{})}
	close(g.open)
	return g
}

// Hold closes the gate. It reports whether the gate was open.
func (g *gate) Hold() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return false
	}
	g.held = true
	g.open = make(chan struct{})
	return true
}

// Release opens the gate. It reports whether the gate was held.
func (g *gate) Release() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.held {
		return false
	}
	g.held = false
	close(g.open)
	return true
}

// Held reports whether the gate is closed.
func (g *gate) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}

// Wait blocks while the gate is held.
func (g *gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	open := g.open
	g.mu.Unlock()

	select {
	case <-open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
