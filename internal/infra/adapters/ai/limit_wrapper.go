package ai

import (
	"context"
	"time"

	"scalable-rag-engine/internal/domain/ports/adapter"
	"scalable-rag-engine/internal/infra/metrics"
)

// Compile-time check
var _ adapter.Generator = (*limitedAI)(nil)

// limitedAI caps in-flight generation calls and records their latency.
type limitedAI struct {
	inner adapter.Generator
	sem   chan struct{}
}

// NewLimitedAI wraps inner; maxConcurrent <= 0 means unlimited.
func NewLimitedAI(inner adapter.Generator, maxConcurrent int) adapter.Generator {
	l := &limitedAI{inner: inner}
	if maxConcurrent > 0 {
		l.sem = make(chan struct{}, maxConcurrent)
	}
	return l
}

func (l *limitedAI) Provider() string { return l.inner.Provider() }
func (l *limitedAI) Model() string    { return l.inner.Model() }

func (l *limitedAI) Generate(ctx context.Context, prompt string) (string, error) {
	if l.sem != nil {
		select {
		case l.sem <- struct{}{}:
			defer func() { <-l.sem }()
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	start := time.Now()
	out, err := l.inner.Generate(ctx, prompt)
	metrics.ObserveAICall(l.inner.Provider(), l.inner.Model(), int(time.Since(start).Milliseconds()), err == nil)
	return out, err
}
