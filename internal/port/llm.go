package port

import "context"

// LLM represents a language model for answer generation.
type LLM interface {
	// GenerateWithSystem generates text constrained by a system prompt.
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
