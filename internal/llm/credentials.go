package llm

import (
	"os"
	"strings"
)

// Key shape checks. These reject obviously wrong values before any network
// call; a key that passes can still be rejected by the provider.

// ValidGeminiKey reports whether the key looks like a Google AI key.
func ValidGeminiKey(key string) bool {
	key = strings.TrimSpace(key)
	return strings.HasPrefix(key, "AIza") && len(key) > 10
}

// ValidOpenAIKey reports whether the key looks like an OpenAI key.
func ValidOpenAIKey(key string) bool {
	key = strings.TrimSpace(key)
	return strings.HasPrefix(key, "sk-") && len(key) > 10
}

// Credentials holds the user's stored keys, if any.
type Credentials struct {
	GeminiKey string
	OpenAIKey string
}

// SelectProvider walks the fallback chain and returns the first provider
// with a plausible key: the user's Gemini key, the user's OpenAI key, then
// the GEMINI_API_KEY and OPENAI_API_KEY environment variables. Returns
// ErrNoCredentials when the chain is exhausted.
func SelectProvider(creds Credentials) (Provider, error) {
	if ValidGeminiKey(creds.GeminiKey) {
		cfg := DefaultConfig("gemini")
		cfg.APIKey = strings.TrimSpace(creds.GeminiKey)
		return NewGeminiProvider(cfg), nil
	}
	if ValidOpenAIKey(creds.OpenAIKey) {
		cfg := DefaultConfig("openai")
		cfg.APIKey = strings.TrimSpace(creds.OpenAIKey)
		return NewOpenAIProvider(cfg), nil
	}
	if key := os.Getenv("GEMINI_API_KEY"); ValidGeminiKey(key) {
		cfg := DefaultConfig("gemini")
		cfg.APIKey = strings.TrimSpace(key)
		return NewGeminiProvider(cfg), nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); ValidOpenAIKey(key) {
		cfg := DefaultConfig("openai")
		cfg.APIKey = strings.TrimSpace(key)
		return NewOpenAIProvider(cfg), nil
	}
	return nil, ErrNoCredentials
}
