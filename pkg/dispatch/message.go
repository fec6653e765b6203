package dispatch

import (
	"context"
	"errors"

	"github.com/jmylchreest/inspectai/pkg/cleaner/sanitize"
	"github.com/jmylchreest/inspectai/pkg/llm"
	"github.com/jmylchreest/inspectai/pkg/picker"
	"github.com/jmylchreest/inspectai/pkg/scrape"
	"github.com/jmylchreest/inspectai/pkg/settings"
)

const refreshHint = "Please REFRESH the web page and try again."

var providerFallbacks = map[string]string{
	"openai":    "OpenAI API Error",
	"anthropic": "Anthropic API Error",
	"gemini":    "Gemini API Error",
	"llama":     "Llama (Groq) API Error",
}

// UserMessage renders err as text for the person using the tool.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var unsupported *llm.UnsupportedError
	var apiErr *llm.APIError
	var invalid *settings.ValidationError

	switch {
	case errors.As(err, &unsupported):
		return "Provider " + unsupported.Provider + " not supported."
	case errors.Is(err, llm.ErrMissingAPIKey):
		return "API Key is missing."
	case errors.Is(err, llm.ErrMissingBaseURL):
		return "Custom base URL is required."
	case errors.As(err, &invalid):
		return invalid.Error()
	case errors.As(err, &apiErr):
		if apiErr.Provider == settings.ProviderCustom {
			return "Custom API Error: " + apiErr.Message
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if fallback, ok := providerFallbacks[apiErr.Provider]; ok {
			return fallback
		}
		return "Failed to fetch response from AI provider."

	case errors.Is(err, ErrEmptyQuery):
		return "Please enter a question."
	case errors.Is(err, ErrBusy):
		return "A request is already in progress. Please wait for it to finish."
	case errors.Is(err, ErrNoSearcher):
		return "Google AI Mode needs a browser, which is not available."

	case errors.Is(err, scrape.ErrSafetyTimeout):
		return "Google AI Mode request timed out."
	case errors.Is(err, scrape.ErrExtractionTimeout):
		return "Google AI response timed out or could not be parsed."
	case errors.Is(err, scrape.ErrBlocked):
		return "Google blocked the request with a captcha or unusual-traffic page. Open google.com in your browser, then try again."

	case errors.Is(err, picker.ErrArmFailed):
		return "Could not start picker. " + refreshHint
	case errors.Is(err, picker.ErrTransportDisconnected):
		return "Lost connection to the page. " + refreshHint
	case errors.Is(err, picker.ErrSelectionCancelled):
		return "Selection cancelled."
	case errors.Is(err, picker.ErrAlreadyPicking):
		return "Already picking an element."
	case errors.Is(err, picker.ErrNodeGone):
		return "The selected element is no longer on the page."
	case errors.Is(err, sanitize.ErrEmptySelection), sanitize.IsSanitizeError(err):
		return "Error capturing element."

	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out."
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	}
	return err.Error()
}
