package llm

import (
	"context"
)

// Client sends a single prompt to a language model and returns its text.
type Client interface {
	GenerateContent(ctx context.Context, req GenerateRequest) (string, error)
}

// GenerateRequest is one generateContent call.
type GenerateRequest struct {
	Prompt           string
	APIKey           string
	ResponseMIMEType string
	MaxOutputTokens  int
}
