package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"scalable-rag-engine/internal/domain/ports/adapter"
	"scalable-rag-engine/internal/infra/metrics"
)

// Compile-time assurance these adapters satisfy the ports
var (
	_ adapter.Generator = (*OpenAIAdapter)(nil)
	_ adapter.Embedder  = (*OpenAIEmbedder)(nil)
)

func newOpenAIClient(apiKey, baseURL string, extra ...option.RequestOption) (openai.Client, error) {
	if apiKey == "" {
		return openai.Client{}, errors.New("openai api key empty")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	opts = append(opts, extra...)
	return openai.NewClient(opts...), nil
}

// OpenAIAdapter implements adapter.Generator against any OpenAI-compatible
// Chat Completions endpoint (OpenAI itself, Groq).
type OpenAIAdapter struct {
	client   openai.Client
	provider string
	model    string
	maxOut   int
}

func NewOpenAIAdapter(provider, apiKey, baseURL, model string, maxOut int, opts ...option.RequestOption) (*OpenAIAdapter, error) {
	c, err := newOpenAIClient(apiKey, baseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", provider, err)
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIAdapter{client: c, provider: provider, model: model, maxOut: maxOut}, nil
}

func (o *OpenAIAdapter) Provider() string { return o.provider }
func (o *OpenAIAdapter) Model() string    { return o.model }

func (o *OpenAIAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(o.model),
	}
	if o.maxOut > 0 {
		params.MaxTokens = openai.Int(int64(o.maxOut))
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", o.provider, err)
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, nil
		}
	}
	return "", errors.New("no choice content")
}

// OpenAIEmbedder implements adapter.Embedder with the Embeddings API.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
	dim    int
}

func NewOpenAIEmbedder(apiKey, baseURL, model string, dim int, opts ...option.RequestOption) (*OpenAIEmbedder, error) {
	c, err := newOpenAIClient(apiKey, baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &OpenAIEmbedder{client: c, model: model, dim: dim}, nil
}

func (o *OpenAIEmbedder) Dimension() int { return o.dim }

func (o *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := o.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (o *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(o.model),
	}
	if o.dim > 0 {
		params.Dimensions = openai.Int(int64(o.dim))
	}

	start := time.Now()
	resp, err := o.client.Embeddings.New(ctx, params)
	metrics.ObserveAICall("openai", o.model, int(time.Since(start).Milliseconds()), err == nil)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		v := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float32(x)
		}
		out[i] = v
	}
	metrics.AddEmbeddedTexts("openai", o.model, len(texts))
	return out, nil
}
