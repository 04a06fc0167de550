package ai

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"scalable-rag-engine/internal/domain/ports/adapter"
)

var _ adapter.TokenCounter = (*TokenCounter)(nil)

// DefaultEncoding is the BPE used for chunk token statistics.
const DefaultEncoding = "cl100k_base"

// TokenCounter counts BPE tokens. When the encoding cannot be loaded (it is
// fetched on first use) it falls back to a rune-based estimate.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTokenCounter(encoding string, log *zerolog.Logger) *TokenCounter {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		if log != nil {
			log.Warn().Err(err).Str("encoding", encoding).Msg("token encoding unavailable, estimating")
		}
		return &TokenCounter{}
	}
	return &TokenCounter{enc: enc}
}

func (c *TokenCounter) Count(text string) int {
	if c == nil || c.enc == nil {
		return estimateTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// estimateTokens assumes roughly four characters per token.
func estimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
