package utils

import (
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// NumTokens counts tokens with the cl100k encoding. When the encoding
// cannot be loaded it falls back to a rune based estimate.
func NumTokens(text string) int {
	encOnce.Do(func() {
		var err error
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Warn("tiktoken unavailable, estimating tokens", "err", err)
		}
	})
	if enc == nil {
		return EstimateTokens(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// EstimateTokens assumes roughly one token per two runes, which over-counts
// English and is close for CJK text.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 1) / 2
}
