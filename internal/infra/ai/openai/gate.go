package openai

import (
	"context"
	"sync"
)

// Gate blocks callers while paused. Resume releases every waiter at once.
type Gate struct {
	mu      sync.Mutex
	paused  bool
	release chan struct{}
}

func NewGate() *Gate {
	return &Gate{}
}

func (g *Gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return
	}
	g.paused = true
	g.release = make(chan struct{})
}

func (g *Gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	g.paused = false
	close(g.release)
}

func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait returns immediately when not paused, otherwise when resumed or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		if !g.paused {
			g.mu.Unlock()
			return nil
		}
		ch := g.release
		g.mu.Unlock()

		select {
		case <-ch:
			// re-check: a Pause may have landed right after the Resume
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
