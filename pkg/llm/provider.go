// Package llm provides a unified interface for the chat-completion
// providers InspectAI can ask about a selected element.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    Role
	Content string
}

// Request represents a completion request to the LLM.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature *float64 // nil leaves the provider default
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response represents the result of an LLM execution.
type Response struct {
	Content      string
	FinishReason string
	Usage        Usage
	Model        string
	Duration     time.Duration
}

// Provider is the core interface that all LLM backends implement.
type Provider interface {
	// Execute sends a completion request and returns the response.
	Execute(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider identifier (e.g., "openai", "gemini").
	Name() string

	// Model returns the configured model name.
	Model() string
}

// ProviderConfig holds common configuration for providers.
type ProviderConfig struct {
	APIKey     string
	BaseURL    string // Required for custom; overrides the default endpoint otherwise
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// DefaultProviderConfig returns sensible defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		MaxRetries: 2,
		Timeout:    120 * time.Second,
	}
}

var (
	// ErrMissingAPIKey is returned when a provider that needs a key has none.
	ErrMissingAPIKey = errors.New("api key is missing")
	// ErrUnsupportedProvider is returned for provider names not in the registry.
	ErrUnsupportedProvider = errors.New("provider not supported")
	// ErrEmptyResponse is returned when a provider answers with no content.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// UnsupportedError names a provider missing from the registry.
type UnsupportedError struct {
	Provider string
}

func (e *UnsupportedError) Error() string {
	return "provider not supported: " + e.Provider
}

// Is reports ErrUnsupportedProvider as a match.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupportedProvider
}

// APIError is a failure reported by a provider's API.
type APIError struct {
	Provider string
	Status   int // 0 when the request never got a response
	Message  string
	Err      error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Float returns a pointer to v, for Request.Temperature.
func Float(v float64) *float64 {
	return &v
}

func splitSystem(msgs []Message) (system string, rest []Message) {
	for _, m := range msgs {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
