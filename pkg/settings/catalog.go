package settings

// Provider names.
const (
	ProviderOpenAI       = "openai"
	ProviderAnthropic    = "anthropic"
	ProviderGemini       = "gemini"
	ProviderLlama        = "llama"
	ProviderCustom       = "custom"
	ProviderGoogleAIMode = "google-ai-mode"
)

// Providers lists every selectable provider, in display order.
var Providers = []string{
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderGemini,
	ProviderLlama,
	ProviderCustom,
	ProviderGoogleAIMode,
}

// ProviderModels is the model catalog offered per provider. The first entry
// is the default. Custom and google-ai-mode take a free-form model or none.
var ProviderModels = map[string][]string{
	ProviderOpenAI:    {"gpt-4o-mini", "gpt-4o", "gpt-3.5-turbo"},
	ProviderAnthropic: {"claude-3-haiku-20240307", "claude-3-sonnet-20240229", "claude-3-opus-20240229"},
	ProviderGemini:    {"gemini-2.5-flash", "gemini-2.5-pro", "gemini-1.5-flash", "gemini-1.5-pro"},
	ProviderLlama:     {"llama-3-8b", "llama-3-70b"},
}

// Models returns the catalog models for provider.
func Models(provider string) []string {
	return ProviderModels[provider]
}

// DefaultModel returns the first catalog model for provider, or "".
func DefaultModel(provider string) string {
	if models := ProviderModels[provider]; len(models) > 0 {
		return models[0]
	}
	return ""
}

// NeedsAPIKey reports whether requests to provider must carry a key.
func NeedsAPIKey(provider string) bool {
	return provider != ProviderCustom && provider != ProviderGoogleAIMode
}
