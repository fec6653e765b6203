// Package dispatch turns a selected element and a question into an answer,
// routing to an LLM provider or to Google AI Mode.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jmylchreest/inspectai/internal/logger"
	"github.com/jmylchreest/inspectai/pkg/llm"
	"github.com/jmylchreest/inspectai/pkg/scrape"
	"github.com/jmylchreest/inspectai/pkg/settings"
)

var (
	// ErrEmptyQuery is returned when the question is blank.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrNoSearcher is returned for google-ai-mode when no browser is available.
	ErrNoSearcher = errors.New("google ai mode is not available")
	// ErrBusy is returned when a request is already running for the caller.
	ErrBusy = errors.New("a request is already in progress")
)

// Request is one question about one element.
type Request struct {
	HTML     string
	Query    string
	Settings settings.Settings
}

// Response is the answer and where it came from.
type Response struct {
	Data     string        `json:"data" yaml:"data"`
	RawHTML  string        `json:"rawHtml,omitempty" yaml:"raw_html,omitempty"`
	Provider string        `json:"provider" yaml:"provider"`
	Model    string        `json:"model,omitempty" yaml:"model,omitempty"`
	Cached   bool          `json:"cached" yaml:"cached"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Text returns the answer for terminal output.
func (r *Response) Text() string {
	return r.Data
}

// ProviderFactory builds an llm.Provider by name.
type ProviderFactory func(name string, cfg llm.ProviderConfig) (llm.Provider, error)

// Searcher answers a prompt through a web search engine.
type Searcher interface {
	Run(ctx context.Context, prompt string) (*scrape.Result, error)
}

// Dispatcher routes requests. It is safe for concurrent use.
type Dispatcher struct {
	newProvider ProviderFactory
	searcher    Searcher
	cache       *responseCache
	timeout     time.Duration
	maxRetries  int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithProviderFactory replaces llm.NewProvider.
func WithProviderFactory(f ProviderFactory) Option {
	return func(d *Dispatcher) {
		d.newProvider = f
	}
}

// WithSearcher enables the google-ai-mode provider.
func WithSearcher(s Searcher) Option {
	return func(d *Dispatcher) {
		d.searcher = s
	}
}

// WithCacheTTL caches provider answers for ttl. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(d *Dispatcher) {
		if ttl <= 0 {
			d.cache = nil
			return
		}
		d.cache = newResponseCache(ttl)
	}
}

// WithTimeout bounds each provider call.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		newProvider: llm.NewProvider,
		cache:       newResponseCache(10 * time.Minute),
		timeout:     llm.DefaultProviderConfig().Timeout,
		maxRetries:  llm.DefaultProviderConfig().MaxRetries,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute answers req.
func (d *Dispatcher) Execute(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	s := req.Settings.WithDefaults()

	if s.Provider == settings.ProviderGoogleAIMode {
		return d.search(ctx, req.HTML, req.Query)
	}
	if !llm.IsRegistered(s.Provider) {
		return nil, &llm.UnsupportedError{Provider: s.Provider}
	}
	if settings.NeedsAPIKey(s.Provider) && s.APIKey == "" {
		return nil, llm.ErrMissingAPIKey
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return d.complete(ctx, s, req.HTML, req.Query)
}

func (d *Dispatcher) search(ctx context.Context, html, query string) (*Response, error) {
	if d.searcher == nil {
		return nil, ErrNoSearcher
	}
	start := time.Now()
	res, err := d.searcher.Run(ctx, SearchPrompt(html, query))
	if err != nil {
		logger.Warn("google ai mode request failed", "error", err)
		return nil, err
	}
	return &Response{
		Data:     res.Markdown,
		RawHTML:  res.RawHTML,
		Provider: settings.ProviderGoogleAIMode,
		Duration: time.Since(start),
	}, nil
}

func (d *Dispatcher) complete(ctx context.Context, s settings.Settings, html, query string) (*Response, error) {
	userPrompt := UserPrompt(html, query)

	var key string
	if d.cache != nil {
		key = cacheKey(s.Provider, s.Model, s.CustomBaseURL, s.MaxTokens, userPrompt)
		if cached, ok := d.cache.get(key); ok {
			logger.Debug("answer served from cache", "provider", s.Provider, "model", s.Model)
			cached.Cached = true
			return &cached, nil
		}
	}

	provider, err := d.newProvider(s.Provider, llm.ProviderConfig{
		APIKey:     s.APIKey,
		BaseURL:    s.CustomBaseURL,
		Model:      s.Model,
		MaxRetries: d.maxRetries,
		Timeout:    d.timeout,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("dispatching to provider",
		"provider", provider.Name(),
		"model", provider.Model(),
		"max_tokens", s.MaxTokens,
		"html_len", len(html))

	resp, err := provider.Execute(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: SystemPrompt},
			{Role: llm.RoleUser, Content: userPrompt},
		},
		MaxTokens:   s.MaxTokens,
		Temperature: llm.TemperatureFor(s.Provider),
	})
	if err != nil {
		logger.Warn("provider request failed", "provider", provider.Name(), "error", err)
		return nil, err
	}

	logger.Info("answer received",
		"provider", provider.Name(),
		"model", resp.Model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration", resp.Duration)

	out := Response{
		Data:     resp.Content,
		Provider: provider.Name(),
		Model:    provider.Model(),
		Duration: resp.Duration,
	}
	if d.cache != nil {
		d.cache.set(key, out)
	}
	return &out, nil
}

// CachedCount returns the number of cached answers.
func (d *Dispatcher) CachedCount() int {
	if d.cache == nil {
		return 0
	}
	return d.cache.count()
}
