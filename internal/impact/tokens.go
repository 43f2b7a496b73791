package impact

import (
	"log/slog"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const fallbackEncoding = "cl100k_base"

func init() {
	// BPE ranks ship with the binary, no download at runtime
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// TokenCounter approximates token counts when a provider does not report usage
type TokenCounter struct {
	mu    sync.RWMutex
	cache map[string]*tiktoken.Tiktoken
}

func NewTokenCounter() *TokenCounter {
	return &TokenCounter{cache: make(map[string]*tiktoken.Tiktoken)}
}

func (c *TokenCounter) encoding(model string) (*tiktoken.Tiktoken, error) {
	key := strings.ToLower(model)

	c.mu.RLock()
	if enc, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return enc, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.cache[key]; ok {
		return enc, nil
	}

	enc, err := tiktoken.EncodingForModel(key)
	if err != nil {
		// gemini and mistral models are unknown to tiktoken
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, err
		}
	}
	c.cache[key] = enc
	return enc, nil
}

// Count returns the number of tokens in text, or a rough
// four-characters-per-token estimate if no encoding is available.
func (c *TokenCounter) Count(model, text string) int {
	if text == "" {
		return 0
	}
	enc, err := c.encoding(model)
	if err != nil {
		slog.Debug("token encoding unavailable", "model", model, "error", err)
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// Usage counts a prompt and a completion
func (c *TokenCounter) Usage(model, prompt, completion string) *Usage {
	in := int64(c.Count(model, prompt))
	out := int64(c.Count(model, completion))
	return &Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
}
