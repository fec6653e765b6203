package llm

import (
	"sort"
	"sync"
)

// ProviderFactory creates providers from config.
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

// DefaultModels maps provider names to their default models.
var DefaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-haiku-20240307",
	"gemini":    "gemini-2.5-flash",
	"llama":     "llama-3-8b",
}

// DefaultTemperatures holds the sampling temperature sent per provider.
// Providers without an entry use their API's own default.
var DefaultTemperatures = map[string]float64{
	"openai": 0.7,
	"custom": 0.7,
}

// keylessProviders may run without an API key.
var keylessProviders = map[string]bool{
	"custom": true,
}

var (
	registryMu sync.RWMutex
	registry   = map[string]ProviderFactory{}
)

func init() {
	RegisterProvider("openai", func(cfg ProviderConfig) (Provider, error) {
		return NewOpenAIProvider(cfg)
	})
	RegisterProvider("anthropic", func(cfg ProviderConfig) (Provider, error) {
		return NewAnthropicProvider(cfg)
	})
	RegisterProvider("gemini", func(cfg ProviderConfig) (Provider, error) {
		return NewGeminiProvider(cfg)
	})
	RegisterProvider("llama", func(cfg ProviderConfig) (Provider, error) {
		return NewLlamaProvider(cfg)
	})
	RegisterProvider("custom", func(cfg ProviderConfig) (Provider, error) {
		return NewCustomProvider(cfg)
	})
}

// NewProvider creates a provider by name.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnsupportedError{Provider: name}
	}
	if cfg.APIKey == "" && !keylessProviders[name] {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModels[name]
	}
	return factory(cfg)
}

// RegisterProvider adds or replaces a provider factory.
func RegisterProvider(name string, factory ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// AvailableProviders returns the registered provider names, sorted.
func AvailableProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	providers := make([]string, 0, len(registry))
	for name := range registry {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}

// IsRegistered returns true if a provider is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// RequiresAPIKey reports whether NewProvider insists on a key for name.
func RequiresAPIKey(name string) bool {
	return !keylessProviders[name]
}

// GetDefaultModel returns the default model for a provider.
func GetDefaultModel(provider string) string {
	return DefaultModels[provider]
}

// TemperatureFor returns the configured temperature for provider, or nil.
func TemperatureFor(provider string) *float64 {
	if t, ok := DefaultTemperatures[provider]; ok {
		return Float(t)
	}
	return nil
}
