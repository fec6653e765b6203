package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint, used for llama models.
const GroqBaseURL = "https://api.groq.com/openai/v1/"

// groqModels maps catalog llama names to Groq model ids.
var groqModels = map[string]string{
	"llama-3-8b":  "llama3-8b-8192",
	"llama-3-70b": "llama3-70b-8192",
}

// OpenAIProvider implements Provider for OpenAI and any endpoint speaking
// the OpenAI chat-completions protocol.
type OpenAIProvider struct {
	client openai.Client
	name   string
	model  string
}

// NewOpenAIProvider creates a provider for api.openai.com.
func NewOpenAIProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.ChatModelGPT4oMini)
	}
	return newOpenAICompatible("openai", cfg), nil
}

// NewLlamaProvider creates a provider for llama models hosted by Groq.
func NewLlamaProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = GroqBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModels["llama"]
	}
	if id, ok := groqModels[cfg.Model]; ok {
		cfg.Model = id
	}
	return newOpenAICompatible("llama", cfg), nil
}

// NewCustomProvider creates a provider for a user-supplied OpenAI-compatible
// endpoint. The key is optional; without one no Authorization header is sent.
func NewCustomProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	base, err := NormalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	cfg.BaseURL = base
	return newOpenAICompatible("custom", cfg), nil
}

// ErrMissingBaseURL is returned when a custom provider has no endpoint.
var ErrMissingBaseURL = errors.New("custom base URL is required")

// NormalizeBaseURL accepts either an API root or a full chat-completions URL
// and returns the root with a trailing slash.
func NormalizeBaseURL(raw string) (string, error) {
	base := strings.TrimSpace(raw)
	if base == "" {
		return "", ErrMissingBaseURL
	}
	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	return base + "/", nil
}

func newOpenAICompatible(name string, cfg ProviderConfig) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.APIKey == "" {
		opts = append(opts, option.WithHeaderDel("authorization"))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		name:   name,
		model:  cfg.Model,
	}
}

// Execute sends a chat completion request.
func (p *OpenAIProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &APIError{Provider: p.name, Message: "no choices in response", Err: ErrEmptyResponse}
	}

	return &Response{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
		Model:    resp.Model,
		Duration: time.Since(start),
	}, nil
}

func (p *OpenAIProvider) wrapError(err error) error {
	apiErr := &APIError{Provider: p.name, Message: err.Error(), Err: err}
	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		apiErr.Status = oaErr.StatusCode
		if oaErr.Message != "" {
			apiErr.Message = oaErr.Message
		}
	}
	return apiErr
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Model returns the configured model name.
func (p *OpenAIProvider) Model() string {
	return p.model
}

var _ Provider = (*OpenAIProvider)(nil)
