package ai

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"oracle-bot/internal/domain/ports/adapter"
)

var _ adapter.TokenCounter = (*TokenCounter)(nil)

// TokenCounter counts cl100k_base tokens. When the encoding cannot be loaded
// it falls back to a rune estimate (one token per three runes, rounded up),
// which over-counts non-Latin text rather than under-counts it.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTokenCounter(logger *zerolog.Logger) *TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn().Err(err).Msg("tiktoken unavailable, using rune estimate")
		return &TokenCounter{}
	}
	return &TokenCounter{enc: enc}
}

func (c *TokenCounter) Count(text string) int {
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return estimateTokens(text)
}

func estimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 2) / 3
}
