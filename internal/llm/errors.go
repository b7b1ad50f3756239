package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrNoCredentials means no usable API key was found anywhere in the chain.
var ErrNoCredentials = errors.New("no llm credentials configured")

// StatusError is a non-200 response from a provider API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// ErrorClass groups provider failures into categories the conversation
// layer can phrase for the user.
type ErrorClass int

const (
	ErrClassUnknown ErrorClass = iota
	ErrClassNoCredentials
	ErrClassSuspended
	ErrClassUnauthorized
	ErrClassRateLimited
	ErrClassTimeout
	ErrClassNetwork
)

// ClassifyError inspects a provider failure and assigns it a class. Typed
// errors are checked first; string matching on the message is the last
// resort for errors that arrive flattened.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrClassUnknown
	}

	if errors.Is(err, ErrNoCredentials) {
		return ErrClassNoCredentials
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusForbidden:
			return ErrClassSuspended
		case http.StatusUnauthorized:
			return ErrClassUnauthorized
		case http.StatusTooManyRequests:
			return ErrClassRateLimited
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrClassTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrClassTimeout
		}
		return ErrClassNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "403") || strings.Contains(msg, "suspended") || strings.Contains(msg, "permission denied"):
		return ErrClassSuspended
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid api key"):
		return ErrClassUnauthorized
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return ErrClassRateLimited
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return ErrClassTimeout
	case strings.Contains(msg, "network") || strings.Contains(msg, "connection"):
		return ErrClassNetwork
	default:
		return ErrClassUnknown
	}
}

// UserMessage renders a provider failure as a sentence suitable for the
// conversation, never exposing raw API error bodies.
func UserMessage(err error) string {
	switch ClassifyError(err) {
	case ErrClassNoCredentials:
		return "I don't have an API key to work with yet. Add a Gemini or OpenAI key to get started."
	case ErrClassSuspended:
		return "Your API key appears to be suspended or lacks access. Please check it with your provider."
	case ErrClassUnauthorized:
		return "Your API key was rejected. Please double-check that it is correct and active."
	case ErrClassRateLimited:
		return "The AI service is rate-limiting requests right now. Please try again in a moment."
	case ErrClassTimeout:
		return "The AI service took too long to respond. Please try again."
	case ErrClassNetwork:
		return "I couldn't reach the AI service. Please check your connection and try again."
	default:
		return "Something went wrong while talking to the AI service. Please try again."
	}
}
