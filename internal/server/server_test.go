package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/jmylchreest/inspectai/pkg/dispatch"
	"github.com/jmylchreest/inspectai/pkg/picker"
	"github.com/jmylchreest/inspectai/pkg/settings"
)

// fakePicker returns whatever is sent on results, or the context error.
type fakePicker struct {
	results  chan pickResult
	started  chan struct{}
	done     chan error
	released chan struct{}
}

type pickResult struct {
	sel *picker.Selection
	err error
}

func newFakePicker() *fakePicker {
	return &fakePicker{
		results:  make(chan pickResult, 1),
		started:  make(chan struct{}, 4),
		done:     make(chan error, 4),
		released: make(chan struct{}, 4),
	}
}

func (p *fakePicker) Pick(ctx context.Context) (*picker.Selection, error) {
	p.started <- struct{}{}
	select {
	case r := <-p.results:
		p.done <- r.err
		return r.sel, r.err
	case <-ctx.Done():
		p.done <- ctx.Err()
		return nil, ctx.Err()
	}
}

func (p *fakePicker) Release(context.Context) {
	p.released <- struct{}{}
}

type fakeDispatcher struct {
	mu      sync.Mutex
	reqs    []dispatch.Request
	resp    *dispatch.Response
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (d *fakeDispatcher) Execute(ctx context.Context, req dispatch.Request) (*dispatch.Response, error) {
	d.mu.Lock()
	d.reqs = append(d.reqs, req)
	d.mu.Unlock()
	if d.entered != nil {
		d.entered <- struct{}{}
	}
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return d.resp, d.err
}

func (d *fakeDispatcher) lastRequest() dispatch.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reqs[len(d.reqs)-1]
}

type memStore struct {
	mu sync.Mutex
	s  settings.Settings
}

func (m *memStore) Load() (settings.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s, nil
}

func (m *memStore) Save(s settings.Settings) error {
	if err := s.WithDefaults().Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = s
	return nil
}

type harness struct {
	picker *fakePicker
	disp   *fakeDispatcher
	store  *memStore
	ts     *httptest.Server
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		picker: newFakePicker(),
		disp:   &fakeDispatcher{resp: &dispatch.Response{Data: "42", Provider: settings.ProviderOpenAI}},
		store: &memStore{s: settings.Settings{
			Provider:  settings.ProviderOpenAI,
			Model:     "gpt-4o-mini",
			APIKey:    "sk-secret-1234",
			MaxTokens: 2048,
		}},
	}
	h.ts = httptest.NewServer(New(h.picker, h.disp, h.store, cfg).Handler())
	t.Cleanup(h.ts.Close)
	return h
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, msg Message) {
	t.Helper()
	if err := ws.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv(t *testing.T, ws *websocket.Conn) Message {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func waitSignal[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

func TestPingPong(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ws := h.dial(t)

	send(t, ws, Message{Action: ActionPing})
	if got := recv(t, ws); got.Action != ActionPong {
		t.Errorf("got %q, want pong", got.Action)
	}
}

func TestUnknownAndInvalidMessages(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ws := h.dial(t)

	send(t, ws, Message{Action: "dance"})
	got := recv(t, ws)
	if got.Action != ActionError || !strings.Contains(got.Error, "dance") {
		t.Errorf("got %+v", got)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if got := recv(t, ws); got.Action != ActionError || got.Error != "Invalid message." {
		t.Errorf("got %+v", got)
	}
}

func TestPicking(t *testing.T) {
	t.Run("selected", func(t *testing.T) {
		h := newHarness(t, DefaultConfig())
		ws := h.dial(t)

		send(t, ws, Message{Action: ActionStartPicking})
		waitSignal(t, h.picker.started, "pick start")
		h.picker.results <- pickResult{sel: &picker.Selection{ID: "s1", HTML: "<p>Hi </p>"}}

		got := recv(t, ws)
		if got.Action != ActionElementSelected || got.HTML != "<p>Hi </p>" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("escape", func(t *testing.T) {
		h := newHarness(t, DefaultConfig())
		ws := h.dial(t)

		send(t, ws, Message{Action: ActionStartPicking})
		waitSignal(t, h.picker.started, "pick start")
		h.picker.results <- pickResult{err: picker.ErrSelectionCancelled}

		if got := recv(t, ws); got.Action != ActionPickingCancelled {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("stop", func(t *testing.T) {
		h := newHarness(t, DefaultConfig())
		ws := h.dial(t)

		send(t, ws, Message{Action: ActionStartPicking})
		waitSignal(t, h.picker.started, "pick start")
		send(t, ws, Message{Action: ActionStopPicking})

		if got := recv(t, ws); got.Action != ActionPickingCancelled {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("second start while picking", func(t *testing.T) {
		h := newHarness(t, DefaultConfig())
		ws := h.dial(t)

		send(t, ws, Message{Action: ActionStartPicking})
		waitSignal(t, h.picker.started, "pick start")
		send(t, ws, Message{Action: ActionStartPicking})

		got := recv(t, ws)
		if got.Action != ActionError || got.Error != "Already picking an element." {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		h := newHarness(t, DefaultConfig())
		ws := h.dial(t)

		send(t, ws, Message{Action: ActionStartPicking})
		waitSignal(t, h.picker.started, "pick start")
		h.picker.results <- pickResult{err: picker.ErrTransportDisconnected}

		got := recv(t, ws)
		if got.Action != ActionError || !strings.Contains(got.Error, "REFRESH") {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("disconnect cancels", func(t *testing.T) {
		h := newHarness(t, DefaultConfig())
		ws := h.dial(t)

		send(t, ws, Message{Action: ActionStartPicking})
		waitSignal(t, h.picker.started, "pick start")
		_ = ws.Close()

		err := waitSignal(t, h.picker.done, "pick to end")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Pick ended with %v, want context.Canceled", err)
		}
	})
}

func TestReleaseSelection(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ws := h.dial(t)

	send(t, ws, Message{Action: ActionReleaseSelection})
	waitSignal(t, h.picker.released, "release")
}

func TestExecutePrompt(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ws := h.dial(t)

	send(t, ws, Message{Action: ActionExecutePrompt, HTML: "<p>6*7</p>", Query: "result?"})
	got := recv(t, ws)
	if got.Action != ActionResult || got.Data != "42" {
		t.Fatalf("got %+v", got)
	}

	req := h.disp.lastRequest()
	if req.HTML != "<p>6*7</p>" || req.Query != "result?" {
		t.Errorf("request = %+v", req)
	}
	if req.Settings.APIKey != "sk-secret-1234" {
		t.Errorf("stored settings not used: %+v", req.Settings)
	}
}

func TestExecutePrompt_PanelSettings(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ws := h.dial(t)

	s := settings.Settings{Provider: settings.ProviderAnthropic, APIKey: "…1234", MaxTokens: 100}
	send(t, ws, Message{Action: ActionExecutePrompt, HTML: "<p/>", Query: "q", Settings: &s})
	recv(t, ws)

	req := h.disp.lastRequest()
	if req.Settings.Provider != settings.ProviderAnthropic {
		t.Errorf("provider = %q", req.Settings.Provider)
	}
	if req.Settings.APIKey != "sk-secret-1234" {
		t.Errorf("redacted key was not resolved: %q", req.Settings.APIKey)
	}
}

func TestExecutePrompt_GoogleAIResultIsSanitized(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.disp.resp = &dispatch.Response{
		Data:     "### Answer\n\n",
		RawHTML:  `<div><p onclick="x()">Answer</p><script>alert(1)</script></div>`,
		Provider: settings.ProviderGoogleAIMode,
	}
	ws := h.dial(t)

	send(t, ws, Message{Action: ActionExecutePrompt, HTML: "<p/>", Query: "q"})
	got := recv(t, ws)
	if got.Action != ActionGoogleAIResult {
		t.Fatalf("got %+v", got)
	}
	if got.Data != "### Answer\n\n" {
		t.Errorf("data = %q", got.Data)
	}
	if strings.Contains(got.RawHTML, "script") || strings.Contains(got.RawHTML, "onclick") {
		t.Errorf("rawHtml not sanitized: %s", got.RawHTML)
	}
	if !strings.Contains(got.RawHTML, "<p>Answer</p>") {
		t.Errorf("rawHtml lost content: %s", got.RawHTML)
	}
}

func TestExecutePrompt_Errors(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.disp.err = dispatch.ErrEmptyQuery
	ws := h.dial(t)

	send(t, ws, Message{Action: ActionExecutePrompt, HTML: "<p/>"})
	got := recv(t, ws)
	if got.Action != ActionError || got.Error != "Please enter a question." {
		t.Errorf("got %+v", got)
	}
}

func TestExecutePrompt_Busy(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.disp.block = make(chan struct{})
	h.disp.entered = make(chan struct{}, 2)
	ws := h.dial(t)

	send(t, ws, Message{Action: ActionExecutePrompt, HTML: "<p/>", Query: "one"})
	waitSignal(t, h.disp.entered, "first prompt")
	send(t, ws, Message{Action: ActionExecutePrompt, HTML: "<p/>", Query: "two"})

	got := recv(t, ws)
	if got.Action != ActionError || !strings.Contains(got.Error, "already in progress") {
		t.Errorf("got %+v", got)
	}

	close(h.disp.block)
	if got := recv(t, ws); got.Action != ActionResult {
		t.Errorf("got %+v", got)
	}
}

func TestExecutePrompt_RateLimited(t *testing.T) {
	h := newHarness(t, Config{PromptRate: rate.Every(time.Hour), PromptBurst: 1})
	ws := h.dial(t)

	send(t, ws, Message{Action: ActionExecutePrompt, HTML: "<p/>", Query: "one"})
	if got := recv(t, ws); got.Action != ActionResult {
		t.Fatalf("got %+v", got)
	}
	send(t, ws, Message{Action: ActionExecutePrompt, HTML: "<p/>", Query: "two"})
	got := recv(t, ws)
	if got.Action != ActionError || got.Error != rateLimitedMessage {
		t.Errorf("got %+v", got)
	}
}

func TestSettings(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ws := h.dial(t)

	send(t, ws, Message{Action: ActionGetSettings})
	got := recv(t, ws)
	if got.Action != ActionSettings || got.Settings == nil {
		t.Fatalf("got %+v", got)
	}
	if got.Settings.APIKey != "…1234" {
		t.Errorf("key not redacted: %q", got.Settings.APIKey)
	}

	update := *got.Settings
	update.Provider = settings.ProviderGemini
	update.Model = ""
	send(t, ws, Message{Action: ActionSaveSettings, Settings: &update})
	got = recv(t, ws)
	if got.Action != ActionSettings || got.Settings.Model != "gemini-2.5-flash" {
		t.Errorf("got %+v", got)
	}

	stored, _ := h.store.Load()
	if stored.Provider != settings.ProviderGemini || stored.APIKey != "sk-secret-1234" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestSaveSettings_Invalid(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ws := h.dial(t)

	bad := settings.Settings{Provider: settings.ProviderCustom, MaxTokens: 10}
	send(t, ws, Message{Action: ActionSaveSettings, Settings: &bad})
	got := recv(t, ws)
	if got.Action != ActionError || !strings.Contains(got.Error, "Custom base URL is required") {
		t.Errorf("got %+v", got)
	}
}

func TestCheckOrigin(t *testing.T) {
	s := New(nil, nil, nil, Config{AllowedOrigins: []string{"https://panel.example"}})
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:8765", true},
		{"chrome-extension://abcdef", true},
		{"https://panel.example", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := s.checkOrigin(r); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	resp, err := http.Get(h.ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	s := New(newFakePicker(), &fakeDispatcher{}, nil, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	if err := waitSignal(t, errc, "server shutdown"); err != nil {
		t.Errorf("ListenAndServe() = %v", err)
	}
}
