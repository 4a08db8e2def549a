// Package tokencount provides token counting and budget-aware truncation for
// prompts sent to the reasoning service.
//
// It uses tiktoken-go, a Go port of OpenAI's official tiktoken library, so
// transcript truncation for the synthesis passes works in real token units
// instead of character guesses.
package tokencount

import (
	"strings"
	"sync"

	"log/slog"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Counter provides thread-safe token counting for LLM models.
type Counter struct {
	encodingCache map[string]*tiktoken.Tiktoken
	mu            sync.RWMutex
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter {
	return &Counter{encodingCache: make(map[string]*tiktoken.Tiktoken)}
}

// DefaultCounter is a global token counter instance.
var DefaultCounter = NewCounter()

func (c *Counter) getEncodingForModel(model string) (*tiktoken.Tiktoken, error) {
	normalized := normalizeModelName(model)

	c.mu.RLock()
	if enc, ok := c.encodingCache[normalized]; ok {
		c.mu.RUnlock()
		return enc, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodingCache[normalized]; ok {
		return enc, nil
	}

	enc, err := tiktoken.EncodingForModel(normalized)
	if err != nil {
		// cl100k_base covers GPT-4, GPT-3.5-turbo and most modern models.
		slog.Debug("falling back to cl100k_base encoding",
			slog.String("model", model),
			slog.Any("error", err))
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}

	c.encodingCache[normalized] = enc
	return enc, nil
}

// normalizeModelName converts provider-prefixed model IDs to tiktoken names,
// e.g. "meta-llama/llama-3.1-8b-instruct:free" -> "llama-3.1-8b-instruct".
func normalizeModelName(model string) string {
	model = strings.ToLower(model)
	if strings.Contains(model, "/") {
		parts := strings.Split(model, "/")
		model = parts[len(parts)-1]
	}
	if i := strings.Index(model, ":"); i >= 0 {
		model = model[:i]
	}
	return model
}

// CountTokens returns the token count of text under the model's encoding.
// Encoding failures fall back to a conservative words*4/3 estimate.
func (c *Counter) CountTokens(model, text string) int {
	enc, err := c.getEncodingForModel(model)
	if err != nil {
		return (len(strings.Fields(text))*4 + 2) / 3
	}
	return len(enc.Encode(text, nil, nil))
}

// TruncateHead drops whole lines from the front of text until it fits within
// maxTokens, keeping the most recent content. The transcript tail carries the
// freshest evidence, so head truncation loses the least signal.
func (c *Counter) TruncateHead(model, text string, maxTokens int) (string, bool) {
	if maxTokens <= 0 || c.CountTokens(model, text) <= maxTokens {
		return text, false
	}
	lines := strings.Split(text, "\n")
	for len(lines) > 1 {
		lines = lines[1:]
		candidate := strings.Join(lines, "\n")
		if c.CountTokens(model, candidate) <= maxTokens {
			return candidate, true
		}
	}
	// A single oversized line is cut by encoding.
	enc, err := c.getEncodingForModel(model)
	if err != nil {
		return text, false
	}
	tokens := enc.Encode(lines[0], nil, nil)
	if len(tokens) <= maxTokens {
		return lines[0], true
	}
	return enc.Decode(tokens[len(tokens)-maxTokens:]), true
}
