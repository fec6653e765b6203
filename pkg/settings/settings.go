// Package settings holds the user's provider choice and persists it.
package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxTokens is the response budget used when none is configured.
const DefaultMaxTokens = 2048

// Settings selects and configures the AI provider.
type Settings struct {
	Provider      string `json:"provider" yaml:"provider" validate:"required,oneof=openai anthropic gemini llama custom google-ai-mode"`
	Model         string `json:"model" yaml:"model"`
	APIKey        string `json:"apiKey,omitempty" yaml:"-"`
	MaxTokens     int    `json:"maxTokens" yaml:"max_tokens" validate:"min=1"`
	CustomBaseURL string `json:"customBaseUrl,omitempty" yaml:"custom_base_url,omitempty" validate:"required_if=Provider custom"`
}

// Default returns the settings used before the user changes anything.
func Default() Settings {
	return Settings{
		Provider:  ProviderOpenAI,
		Model:     DefaultModel(ProviderOpenAI),
		MaxTokens: DefaultMaxTokens,
	}
}

// ErrInvalid is wrapped by every ValidationError.
var ErrInvalid = errors.New("invalid settings")

// FieldError describes one invalid field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every invalid field.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the settings, returning a *ValidationError on failure.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Message: formatFieldError(fe, s),
		})
	}
	return out
}

func formatFieldError(fe validator.FieldError, s Settings) string {
	switch fe.Field() {
	case "MaxTokens":
		return "Invalid Max Tokens"
	case "Provider":
		if s.Provider == "" {
			return "Provider is required"
		}
		return fmt.Sprintf("Provider %s not supported.", s.Provider)
	case "CustomBaseURL":
		return "Custom base URL is required"
	}
	return fmt.Sprintf("%s failed validation '%s'", fe.Field(), fe.Tag())
}

// WithDefaults fills empty fields: a missing model becomes the provider's
// catalog default, a zero token budget becomes DefaultMaxTokens.
func (s Settings) WithDefaults() Settings {
	if s.Provider == "" {
		s.Provider = ProviderOpenAI
	}
	if s.Model == "" {
		s.Model = DefaultModel(s.Provider)
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	return s
}

// Redacted returns a copy safe to log or send to a client: the key is
// reduced to its last four characters.
func (s Settings) Redacted() Settings {
	if n := len(s.APIKey); n > 0 {
		if n > 4 {
			s.APIKey = "…" + s.APIKey[n-4:]
		} else {
			s.APIKey = "…"
		}
	}
	return s
}
