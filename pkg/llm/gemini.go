package llm

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jmylchreest/inspectai/internal/version"
)

// GeminiBaseURL is the Generative Language API root.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider implements Provider with the generateContent REST endpoint.
type GeminiProvider struct {
	client *resty.Client
	apiKey string
	model  string
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(cfg ProviderConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = GeminiBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultProviderConfig().Timeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("User-Agent", version.UserAgent()).
		SetHeader("Content-Type", "application/json")
	if cfg.MaxRetries > 0 {
		client.SetRetryCount(cfg.MaxRetries).
			SetRetryWaitTime(time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return r != nil && (r.StatusCode() == 429 || r.StatusCode() >= 500)
			})
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModels["gemini"]
	}

	return &GeminiProvider{
		client: client,
		apiKey: cfg.APIKey,
		model:  model,
	}, nil
}

// Execute sends a generateContent request. Gemini gets the system prompt
// folded into the single user turn.
func (p *GeminiProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	system, rest := splitSystem(req.Messages)
	var contents []geminiContent
	for i, msg := range rest {
		text := msg.Content
		if i == 0 && system != "" {
			text = system + "\n\n" + text
		}
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: text}}})
	}
	if len(contents) == 0 && system != "" {
		contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: system}}}}
	}

	body := geminiRequest{
		Contents: contents,
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	}

	var out geminiResponse
	var apiErr geminiError
	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("model", p.model).
		SetQueryParam("key", p.apiKey).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/models/{model}:generateContent")
	if err != nil {
		return nil, &APIError{Provider: "gemini", Message: err.Error(), Err: err}
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = resp.Status()
		}
		return nil, &APIError{Provider: "gemini", Status: resp.StatusCode(), Message: msg}
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, &APIError{Provider: "gemini", Status: resp.StatusCode(), Message: "no candidates in response", Err: ErrEmptyResponse}
	}

	model := out.ModelVersion
	if model == "" {
		model = p.model
	}
	return &Response{
		Content:      out.Candidates[0].Content.Parts[0].Text,
		FinishReason: out.Candidates[0].FinishReason,
		Usage: Usage{
			InputTokens:  out.UsageMetadata.PromptTokenCount,
			OutputTokens: out.UsageMetadata.CandidatesTokenCount,
		},
		Model:    model,
		Duration: time.Since(start),
	}, nil
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the configured model name.
func (p *GeminiProvider) Model() string {
	return p.model
}

var _ Provider = (*GeminiProvider)(nil)
