package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/inspectai/internal/logger"
	"github.com/jmylchreest/inspectai/pkg/fetcher"
)

// ErrClosed is returned when a tab is used after it or its browser was closed.
var ErrClosed = errors.New("browser closed")

// Browser is a single Chrome process. Tabs opened from it share cookies.
type Browser struct {
	config Config

	allocCtx    context.Context
	cancelAlloc context.CancelFunc

	// rootCtx holds the first target; chromedp ties the process lifetime to it.
	rootCtx    context.Context
	cancelRoot context.CancelFunc

	closeOnce sync.Once
}

// New starts a browser with the given configuration.
func New(cfg Config) (*Browser, error) {
	defaults := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = defaults.Width, defaults.Height
	}
	if cfg.ChromePath == "" {
		cfg.ChromePath = FindChromePath()
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	rootCtx, cancelRoot := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Logf("chromedp")))

	// An empty Run launches the process so startup failures surface here.
	if err := chromedp.Run(rootCtx); err != nil {
		cancelRoot()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Debug("browser started",
		"headless", cfg.Headless,
		"stealth", cfg.Stealth,
		"chrome", cfg.ChromePath)

	return &Browser{
		config:      cfg,
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		rootCtx:     rootCtx,
		cancelRoot:  cancelRoot,
	}, nil
}

// Config returns the configuration the browser was started with.
func (b *Browser) Config() Config {
	return b.config
}

// NewTab opens a fresh tab. The caller must Close it.
func (b *Browser) NewTab(ctx context.Context) (*Tab, error) {
	if b.rootCtx.Err() != nil {
		return nil, ErrClosed
	}
	tabCtx, cancel := chromedp.NewContext(b.rootCtx)
	tab := &Tab{ctx: tabCtx, cancel: cancel}

	var actions []chromedp.Action
	if b.config.Stealth {
		actions = append(actions, InjectStealthScript())
	}
	if err := tab.Run(ctx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return tab, nil
}

// Fetch loads a URL in a throwaway tab and returns the rendered document.
func (b *Browser) Fetch(ctx context.Context, targetURL string, opts fetcher.Options) (fetcher.Content, error) {
	result := fetcher.Content{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = b.config.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tab, err := b.NewTab(ctx)
	if err != nil {
		return result, err
	}
	defer tab.Close()

	waitFor := opts.WaitForSelector
	if waitFor == "" {
		waitFor = "body"
	}
	actions := []chromedp.Action{
		chromedp.Navigate(targetURL),
		chromedp.WaitReady(waitFor),
	}
	if opts.WaitDuration > 0 {
		actions = append(actions, chromedp.Sleep(opts.WaitDuration))
	}
	actions = append(actions,
		chromedp.OuterHTML("html", &result.HTML),
		chromedp.Title(&result.Title),
	)

	logger.Debug("dynamic fetch starting", "url", targetURL, "timeout", timeout, "wait_for", waitFor)
	if err := tab.Run(ctx, actions...); err != nil {
		tab.saveDebugScreenshot()
		if ctx.Err() != nil {
			logger.Warn("browser timeout, possible anti-bot protection", "url", targetURL)
			return result, fmt.Errorf("%w: %v", fetcher.ErrChallengeTimeout, err)
		}
		return result, fmt.Errorf("browser automation failed: %w", err)
	}
	result.StatusCode = 200 // chromedp doesn't easily expose status codes

	if opts.MaxBytes > 0 && len(result.HTML) > opts.MaxBytes {
		return result, fetcher.ErrTooLarge
	}
	if challenge := DetectChallenge(result.Title, result.HTML); challenge != "" {
		logger.Warn("challenge page detected", "url", targetURL, "type", challenge)
		return result, fmt.Errorf("%w: %s", fetcher.ErrAntiBot, challenge)
	}

	logger.Debug("dynamic fetch complete", "url", targetURL, "title", result.Title, "size", len(result.HTML))
	return result, nil
}

// Type returns the fetcher type.
func (b *Browser) Type() string {
	return "dynamic"
}

// Close shuts down every tab and the browser process.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		b.cancelRoot()
		b.cancelAlloc()
		logger.Debug("browser closed")
	})
	return nil
}

var _ fetcher.Fetcher = (*Browser)(nil)

// Tab is one browser target.
type Tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Context returns the chromedp context bound to this tab, for listeners.
func (t *Tab) Context() context.Context {
	return t.ctx
}

// Run executes actions in the tab, bounded by the caller's ctx.
// Cancelling ctx aborts the actions without closing the tab.
func (t *Tab) Run(ctx context.Context, actions ...chromedp.Action) error {
	if t.ctx.Err() != nil {
		return ErrClosed
	}
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the body to be ready.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	return t.Run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body"))
}

// Snapshot returns the current outer HTML of the document.
func (t *Tab) Snapshot(ctx context.Context) (string, error) {
	var html string
	if err := t.Run(ctx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", err
	}
	return html, nil
}

// Title returns the document title.
func (t *Tab) Title(ctx context.Context) (string, error) {
	var title string
	err := t.Run(ctx, chromedp.Title(&title))
	return title, err
}

// Closed reports whether the tab has been closed or its browser has exited.
func (t *Tab) Closed() bool {
	return t.ctx.Err() != nil
}

// Close closes the tab. Safe to call more than once.
func (t *Tab) Close() {
	t.cancel()
}

func (t *Tab) saveDebugScreenshot() {
	screenshot := CaptureScreenshotOnError(t.ctx)
	if screenshot == nil {
		return
	}
	path := filepath.Join(os.TempDir(), fmt.Sprintf("inspectai-debug-%d.png", time.Now().UnixNano()))
	if err := os.WriteFile(path, screenshot, 0o644); err == nil {
		logger.Debug("debug screenshot saved", "path", path)
	}
}

// IsClosedError reports whether err means the tab or browser went away.
func IsClosedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "target closed") || strings.Contains(msg, "websocket: close")
}

// Lazy starts a browser on first use. Commands that may never need the
// headless search browser hold one of these instead.
type Lazy struct {
	config Config

	mu      sync.Mutex
	browser *Browser
}

// NewLazy returns a Lazy that will start a browser with cfg.
func NewLazy(cfg Config) *Lazy {
	return &Lazy{config: cfg}
}

// Get returns the browser, starting it if needed. A failed start is retried
// on the next call; a browser whose process died is replaced.
func (l *Lazy) Get() (*Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.browser != nil && l.browser.rootCtx.Err() == nil {
		return l.browser, nil
	}
	b, err := New(l.config)
	if err != nil {
		return nil, err
	}
	l.browser = b
	return b, nil
}

// Close shuts the browser down if it was started.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.browser == nil {
		return nil
	}
	err := l.browser.Close()
	l.browser = nil
	return err
}
