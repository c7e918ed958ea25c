package output

import "context"

//go:generate mockgen -source=llm.go -destination=mocks/mock_llm.go -package=mocks

// GenerationPort sends a prompt pair to an external text-generation service.
// Implementations do not retry; a non-2xx answer is returned as *entity.GenerationError.
type GenerationPort interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
	APIKey       string
}
