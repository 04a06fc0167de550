package adapter

import "context"

// Generator is the port for single-prompt text generation.
type Generator interface {
	// Provider and Model label metrics and logs.
	Provider() string
	Model() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder turns texts into vectors of a fixed dimension.
type Embedder interface {
	Dimension() int
	// EmbedDocuments returns one vector per text, in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TokenCounter counts model tokens in a text (best-effort).
type TokenCounter interface {
	Count(text string) int
}
