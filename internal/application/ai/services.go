package ai

import (
	"context"
	"time"

	"github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	"github.com/bryanwahyu/automaton-audit/internal/infra/ai/prompt"
)

// Service writes report narratives through the completion service.
type Service struct {
	caller ai.Caller
}

func NewService(caller ai.Caller) *Service {
	return &Service{caller: caller}
}

// Narrate asks for a natural-language audit report. Callers treat failure as non-fatal.
func (s *Service) Narrate(ctx context.Context, in prompt.NarrativeInput, onRetry func(int, time.Duration)) (string, error) {
	return s.caller.Call(ctx, prompt.NarrativeFunction, ai.Request{
		System:  prompt.NarrativeSystemPrompt,
		Prompt:  prompt.BuildNarrativePrompt(in),
		Data:    in,
		OnRetry: onRetry,
	})
}
