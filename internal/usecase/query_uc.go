// File: internal/usecase/query_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"scalable-rag-engine/internal/domain"
	"scalable-rag-engine/internal/domain/model"
	"scalable-rag-engine/internal/domain/ports/adapter"
	"scalable-rag-engine/internal/infra/logging"
	"scalable-rag-engine/internal/infra/metrics"
)

// Compile-time check
var _ QueryUseCase = (*queryUC)(nil)

const (
	// FallbackAnswer is returned when retrieval finds nothing.
	FallbackAnswer = "I could not find an answer in the ingested content."
	DefaultTopK    = 3
	contextSep     = "\n---\n"
)

const promptTemplate = `You are a helpful assistant. Answer the user's question based ONLY on the following context.
If the answer is not found in the context, say "` + FallbackAnswer + `"
Do not use any prior knowledge.

Context:
---
%s
---

Question: %s

Answer:`

// Answer is a grounded reply and the distinct URLs its context came from.
type Answer struct {
	Text    string
	Sources []string
}

type QueryUseCase interface {
	Answer(ctx context.Context, question string) (*Answer, error)
}

type queryUC struct {
	index adapter.IndexStore
	gen   adapter.Generator
	k     int
	log   *zerolog.Logger
}

// NewQueryUseCase builds the query engine; k <= 0 uses DefaultTopK.
func NewQueryUseCase(index adapter.IndexStore, gen adapter.Generator, k int, logger *zerolog.Logger) *queryUC {
	if k <= 0 {
		k = DefaultTopK
	}
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "query").Logger()
	return &queryUC{index: index, gen: gen, k: k, log: &l}
}

func (u *queryUC) Answer(ctx context.Context, question string) (*Answer, error) {
	defer logging.TraceDuration(u.log, "QueryUC.Answer")()
	log := logging.With(ctx, u.log)

	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrInvalidArgument
	}
	log.Info().Str("query", logging.Preview(question, 80)).Msg("query received")

	res, err := u.index.Query(ctx, question, u.k)
	if err != nil {
		metrics.IncQuery("index_error")
		var ie *domain.IndexError
		if !errors.As(err, &ie) {
			err = &domain.IndexError{Op: "query", Err: err}
		}
		return nil, err
	}
	if len(res.Documents) == 0 {
		log.Info().Msg("no relevant context found")
		metrics.IncQuery("fallback")
		return &Answer{Text: FallbackAnswer, Sources: []string{}}, nil
	}

	prompt := BuildPrompt(res.Documents, question)
	log.Debug().Int("chunks", len(res.Documents)).Msg("generating answer")

	text, err := u.gen.Generate(ctx, prompt)
	if err != nil {
		metrics.IncQuery("generation_error")
		log.Error().Err(err).Str("provider", u.gen.Provider()).Msg("generation failed")
		return nil, &domain.GenerationError{Err: err}
	}

	metrics.IncQuery("answered")
	return &Answer{Text: text, Sources: Sources(res.Metadatas)}, nil
}

// BuildPrompt places the retrieved chunks, separated by "\n---\n", into the
// grounded answer template.
func BuildPrompt(chunks []string, question string) string {
	return fmt.Sprintf(promptTemplate, strings.Join(chunks, contextSep), question)
}

// Sources returns the distinct source URLs of metas, sorted.
func Sources(metas []map[string]string) []string {
	seen := make(map[string]struct{}, len(metas))
	out := []string{}
	for _, m := range metas {
		src := m[model.MetaSourceURL]
		if src == "" {
			continue
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}
