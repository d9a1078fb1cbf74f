package domain

import "context"

// Generator is the auxiliary generation model contract. Query extension and
// deep search refinement both run through it.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// GenerationRequest is a single chat-completion style call.
type GenerationRequest struct {
	Model  string
	System string
	Prompt string
}

// GenerationResult carries the generated text and token usage.
type GenerationResult struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}
