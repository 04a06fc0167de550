package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"scalable-rag-engine/internal/domain/ports/adapter"
)

var (
	_ adapter.Generator = (*NoopAIAdapter)(nil)
	_ adapter.Embedder  = (*NoopEmbedder)(nil)
)

// NoopAIAdapter is the "noop" provider for local runs without API keys. It
// answers with the first context block of the prompt.
type NoopAIAdapter struct{}

func NewNoopAIAdapter() *NoopAIAdapter { return &NoopAIAdapter{} }

func (a *NoopAIAdapter) Provider() string { return "noop" }
func (a *NoopAIAdapter) Model() string    { return "noop-ai-model" }

func (a *NoopAIAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body := prompt
	const open = "Context:\n---\n"
	if i := strings.Index(body, open); i >= 0 {
		body = body[i+len(open):]
	}
	if i := strings.Index(body, "\n---\n"); i >= 0 {
		body = body[:i]
	}
	return strings.TrimSpace(body), nil
}

// NoopEmbedder hashes words into a fixed number of buckets and normalises the
// result, so texts sharing words are close under cosine distance.
type NoopEmbedder struct {
	dim int
}

func NewNoopEmbedder(dim int) *NoopEmbedder { return &NoopEmbedder{dim: dim} }

func (e *NoopEmbedder) Dimension() int { return e.dim }

func (e *NoopEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *NoopEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e *NoopEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,;:!?\"'()")))
		v[h.Sum32()%uint32(e.dim)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}
