package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "dial tcp: connection refused" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return false }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ErrClassUnknown},
		{"no credentials", ErrNoCredentials, ErrClassNoCredentials},
		{"wrapped no credentials", fmt.Errorf("select provider: %w", ErrNoCredentials), ErrClassNoCredentials},
		{"status 403", &StatusError{Provider: "gemini", StatusCode: 403}, ErrClassSuspended},
		{"status 401", &StatusError{Provider: "openai", StatusCode: 401}, ErrClassUnauthorized},
		{"status 429", &StatusError{Provider: "gemini", StatusCode: 429}, ErrClassRateLimited},
		{"wrapped status", fmt.Errorf("chat: %w", &StatusError{Provider: "openai", StatusCode: 429}), ErrClassRateLimited},
		{"deadline", context.DeadlineExceeded, ErrClassTimeout},
		{"net timeout", &fakeNetError{timeout: true}, ErrClassTimeout},
		{"net refusal", &fakeNetError{}, ErrClassNetwork},
		{"string suspended", errors.New("account suspended"), ErrClassSuspended},
		{"string permission denied", errors.New("google.genai: permission denied for this key"), ErrClassSuspended},
		{"string unauthorized", errors.New("invalid api key provided"), ErrClassUnauthorized},
		{"string quota", errors.New("you have exceeded your quota"), ErrClassRateLimited},
		{"string timeout", errors.New("request timeout"), ErrClassTimeout},
		{"string connection", errors.New("connection reset by peer"), ErrClassNetwork},
		{"unknown", errors.New("weird failure"), ErrClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestUserMessageNeverExposesBody(t *testing.T) {
	err := &StatusError{Provider: "gemini", StatusCode: 429, Body: `{"error": "secret internals"}`}
	msg := UserMessage(err)
	assert.NotContains(t, msg, "secret internals")
	assert.NotEmpty(t, msg)
}

func TestKeyValidation(t *testing.T) {
	assert.True(t, ValidGeminiKey("AIzaSyExample12345"))
	assert.False(t, ValidGeminiKey("AIza"))
	assert.False(t, ValidGeminiKey("sk-abcdef12345"))

	assert.True(t, ValidOpenAIKey("sk-abcdef12345"))
	assert.False(t, ValidOpenAIKey("sk-"))
	assert.False(t, ValidOpenAIKey("AIzaSyExample12345"))
}

func TestSelectProviderChain(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	t.Run("user gemini first", func(t *testing.T) {
		p, err := SelectProvider(Credentials{
			GeminiKey: "AIzaSyExample12345",
			OpenAIKey: "sk-abcdef12345",
		})
		assert.NoError(t, err)
		assert.Equal(t, "gemini", p.Name())
	})

	t.Run("user openai second", func(t *testing.T) {
		p, err := SelectProvider(Credentials{OpenAIKey: "sk-abcdef12345"})
		assert.NoError(t, err)
		assert.Equal(t, "openai", p.Name())
	})

	t.Run("env gemini third", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "AIzaSyEnvKey12345")
		p, err := SelectProvider(Credentials{})
		assert.NoError(t, err)
		assert.Equal(t, "gemini", p.Name())
	})

	t.Run("env openai fourth", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-envkey12345")
		p, err := SelectProvider(Credentials{})
		assert.NoError(t, err)
		assert.Equal(t, "openai", p.Name())
	})

	t.Run("chain exhausted", func(t *testing.T) {
		_, err := SelectProvider(Credentials{GeminiKey: "bogus", OpenAIKey: "also bogus"})
		assert.ErrorIs(t, err, ErrNoCredentials)
	})
}
