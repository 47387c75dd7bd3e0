package ai

import (
	"context"
	"time"
)

// Request is one invocation of a named completion function.
type Request struct {
	System string
	Prompt string
	// Data is sent alongside the messages as structured context.
	Data any
	// OnRetry fires before each rate-limit retry with the 1-based retry number and the wait.
	OnRetry func(retry int, wait time.Duration)
}

// Caller invokes a named function on the completion service and returns the accumulated text.
type Caller interface {
	Call(ctx context.Context, function string, req Request) (string, error)
}

// Pauser suspends outgoing calls until resumed.
type Pauser interface {
	Pause()
	Resume()
	Paused() bool
}
