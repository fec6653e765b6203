package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type captured struct {
	path   string
	auth   string
	query  string
	header http.Header
	body   map[string]any
}

func captureServer(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.auth = r.Header.Get("Authorization")
		c.query = r.URL.RawQuery
		c.header = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &c.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

const chatReply = `{"id":"c1","object":"chat.completion","created":0,"model":"served-model",
"choices":[{"index":0,"message":{"role":"assistant","content":"It is a table."},"finish_reason":"stop"}],
"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`

var testMessages = []Message{
	{Role: RoleSystem, Content: "be brief"},
	{Role: RoleUser, Content: "what is this?"},
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"http://localhost:1234/v1", "http://localhost:1234/v1/", false},
		{"http://localhost:1234/v1/", "http://localhost:1234/v1/", false},
		{"http://localhost:1234/v1/chat/completions", "http://localhost:1234/v1/", false},
		{"  http://x/v1//  ", "http://x/v1/", false},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeBaseURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeBaseURL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeBaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCustomProvider(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		wantAuth string
	}{
		{"without key", "", ""},
		{"with key", "sk-local", "Bearer sk-local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, c := captureServer(t, http.StatusOK, chatReply)

			p, err := NewProvider("custom", ProviderConfig{APIKey: tt.key, BaseURL: srv.URL + "/v1/chat/completions", Model: "local-model"})
			if err != nil {
				t.Fatalf("NewProvider() error = %v", err)
			}
			resp, err := p.Execute(context.Background(), Request{
				Messages:    testMessages,
				MaxTokens:   256,
				Temperature: TemperatureFor("custom"),
			})
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			if resp.Content != "It is a table." {
				t.Errorf("Content = %q", resp.Content)
			}
			if c.path != "/v1/chat/completions" {
				t.Errorf("path = %q", c.path)
			}
			if c.auth != tt.wantAuth {
				t.Errorf("Authorization = %q, want %q", c.auth, tt.wantAuth)
			}
			if c.body["model"] != "local-model" || c.body["temperature"] != 0.7 || c.body["max_tokens"] != float64(256) {
				t.Errorf("unexpected body: %v", c.body)
			}
		})
	}
}

func TestOpenAIProvider_APIError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusBadRequest, `{"error":{"message":"model not found","type":"invalid_request_error"}}`)

	p, err := NewProvider("openai", ProviderConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Execute(context.Background(), Request{Messages: testMessages})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Provider != "openai" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestLlamaProvider_MapsModel(t *testing.T) {
	srv, c := captureServer(t, http.StatusOK, chatReply)

	p, err := NewProvider("llama", ProviderConfig{APIKey: "gsk", BaseURL: srv.URL + "/openai/v1/", Model: "llama-3-70b"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Execute(context.Background(), Request{Messages: testMessages}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if c.body["model"] != "llama3-70b-8192" {
		t.Errorf("model = %v", c.body["model"])
	}
	if _, ok := c.body["temperature"]; ok {
		t.Error("llama requests should not set a temperature")
	}
}

func TestAnthropicProvider(t *testing.T) {
	reply := `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-haiku-20240307",
"content":[{"type":"text","text":"A pricing table."}],"stop_reason":"end_turn",
"usage":{"input_tokens":3,"output_tokens":4}}`
	srv, c := captureServer(t, http.StatusOK, reply)

	p, err := NewProvider("anthropic", ProviderConfig{APIKey: "sk-ant", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Execute(context.Background(), Request{Messages: testMessages, MaxTokens: 100})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if resp.Content != "A pricing table." {
		t.Errorf("Content = %q", resp.Content)
	}
	if c.path != "/v1/messages" {
		t.Errorf("path = %q", c.path)
	}
	if c.header.Get("X-Api-Key") != "sk-ant" {
		t.Errorf("x-api-key = %q", c.header.Get("X-Api-Key"))
	}
	system, _ := json.Marshal(c.body["system"])
	if !strings.Contains(string(system), "be brief") {
		t.Errorf("system = %s", system)
	}
	if c.body["model"] != "claude-3-haiku-20240307" {
		t.Errorf("model = %v", c.body["model"])
	}
}

func TestGeminiProvider(t *testing.T) {
	reply := `{"candidates":[{"content":{"role":"model","parts":[{"text":"Three rows."}]},"finishReason":"STOP"}],
"usageMetadata":{"promptTokenCount":7,"candidatesTokenCount":2}}`
	srv, c := captureServer(t, http.StatusOK, reply)

	p, err := NewProvider("gemini", ProviderConfig{APIKey: "g-key", BaseURL: srv.URL + "/v1beta", Model: "gemini-2.5-flash"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Execute(context.Background(), Request{Messages: testMessages, MaxTokens: 64})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if resp.Content != "Three rows." || resp.Usage.OutputTokens != 2 {
		t.Errorf("Response = %+v", resp)
	}
	if c.path != "/v1beta/models/gemini-2.5-flash:generateContent" {
		t.Errorf("path = %q", c.path)
	}
	if c.query != "key=g-key" {
		t.Errorf("query = %q", c.query)
	}

	contents := c.body["contents"].([]any)
	first := contents[0].(map[string]any)
	text := first["parts"].([]any)[0].(map[string]any)["text"]
	if text != "be brief\n\nwhat is this?" {
		t.Errorf("text = %q", text)
	}
	gen := c.body["generationConfig"].(map[string]any)
	if gen["maxOutputTokens"] != float64(64) {
		t.Errorf("generationConfig = %v", gen)
	}
}

func TestGeminiProvider_Errors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		srv, _ := captureServer(t, http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
		p, _ := NewGeminiProvider(ProviderConfig{APIKey: "bad", BaseURL: srv.URL})
		_, err := p.Execute(context.Background(), Request{Messages: testMessages})

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "API key not valid" {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		srv, _ := captureServer(t, http.StatusOK, `{"candidates":[]}`)
		p, _ := NewGeminiProvider(ProviderConfig{APIKey: "k", BaseURL: srv.URL})
		_, err := p.Execute(context.Background(), Request{Messages: testMessages})
		if !errors.Is(err, ErrEmptyResponse) {
			t.Errorf("error = %v, want ErrEmptyResponse", err)
		}
	})
}

func TestNewProvider_Errors(t *testing.T) {
	if _, err := NewProvider("mistral", ProviderConfig{APIKey: "k"}); !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("unknown provider error = %v", err)
	}
	for _, name := range []string{"openai", "anthropic", "gemini", "llama"} {
		if _, err := NewProvider(name, ProviderConfig{}); !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("%s without key: error = %v", name, err)
		}
	}
	if _, err := NewProvider("custom", ProviderConfig{}); !errors.Is(err, ErrMissingBaseURL) {
		t.Errorf("custom without base URL: error = %v", err)
	}
}

func TestRegistry(t *testing.T) {
	want := []string{"anthropic", "custom", "gemini", "llama", "openai"}
	got := AvailableProviders()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("AvailableProviders() = %v", got)
	}
	if RequiresAPIKey("custom") || !RequiresAPIKey("openai") {
		t.Error("RequiresAPIKey mismatch")
	}
	if TemperatureFor("anthropic") != nil || *TemperatureFor("openai") != 0.7 {
		t.Error("TemperatureFor mismatch")
	}
	if GetDefaultModel("openai") != "gpt-4o-mini" {
		t.Errorf("default openai model = %q", GetDefaultModel("openai"))
	}
}

func TestAPIError(t *testing.T) {
	inner := errors.New("dial tcp: refused")
	err := &APIError{Provider: "custom", Message: "dial tcp: refused", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("APIError should unwrap")
	}
	if got := (&APIError{Provider: "gemini", Status: 403, Message: "denied"}).Error(); got != "gemini API error (403): denied" {
		t.Errorf("Error() = %q", got)
	}
}
