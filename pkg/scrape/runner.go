package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmylchreest/inspectai/internal/logger"
	"github.com/jmylchreest/inspectai/pkg/browser"
	"github.com/jmylchreest/inspectai/pkg/poll"
)

// SearchBaseURL is the AI Mode search endpoint; the prompt is appended as q.
const SearchBaseURL = "https://www.google.com/search?udm=50&aep=11&hl=en&lr=lang_en&q="

// DefaultSafetyTimeout bounds a whole request, navigation included.
const DefaultSafetyTimeout = 30 * time.Second

// Page is a tab the runner drives. *browser.Tab satisfies it.
type Page interface {
	Source
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	Close()
}

// OpenFunc opens a new hidden page.
type OpenFunc func(ctx context.Context) (Page, error)

// FromBrowser opens pages as tabs of a lazily started browser.
func FromBrowser(l *browser.Lazy) OpenFunc {
	return func(ctx context.Context) (Page, error) {
		b, err := l.Get()
		if err != nil {
			return nil, err
		}
		tab, err := b.NewTab(ctx)
		if err != nil {
			return nil, err
		}
		return tab, nil
	}
}

// SearchURL builds the AI Mode URL for a prompt.
func SearchURL(prompt string) string {
	return SearchBaseURL + url.QueryEscape(prompt)
}

// Runner answers prompts by loading them into Google AI Mode and reading
// the rendered answer.
type Runner struct {
	open          OpenFunc
	locator       *Locator
	poll          poll.Config
	safetyTimeout time.Duration
	buildURL      func(prompt string) string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLocator overrides the answer selectors.
func WithLocator(l *Locator) Option {
	return func(r *Runner) {
		r.locator = l
	}
}

// WithPollConfig overrides the poll bounds.
func WithPollConfig(cfg poll.Config) Option {
	return func(r *Runner) {
		r.poll = cfg
	}
}

// WithSafetyTimeout overrides the whole-request deadline.
func WithSafetyTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.safetyTimeout = d
	}
}

// WithURLBuilder replaces SearchURL, mainly so tests can point at a local server.
func WithURLBuilder(fn func(prompt string) string) Option {
	return func(r *Runner) {
		r.buildURL = fn
	}
}

// NewRunner creates a Runner that opens pages with open.
func NewRunner(open OpenFunc, opts ...Option) *Runner {
	r := &Runner{
		open:          open,
		locator:       DefaultLocator(),
		poll:          poll.DefaultConfig(),
		safetyTimeout: DefaultSafetyTimeout,
		buildURL:      SearchURL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run submits prompt and waits for the answer. The page is always closed
// before Run returns, whichever way it ends.
func (r *Runner) Run(ctx context.Context, prompt string) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.safetyTimeout)
	defer cancel()

	res, err := r.run(runCtx, prompt)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		logger.Warn("search request hit safety timeout", "timeout", r.safetyTimeout)
		return nil, ErrSafetyTimeout
	}
	return res, err
}

func (r *Runner) run(ctx context.Context, prompt string) (*Result, error) {
	page, err := r.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open search tab: %w", err)
	}
	defer page.Close()

	target := r.buildURL(prompt)
	logger.Debug("search tab navigating", "prompt_len", len(prompt))
	if err := page.Navigate(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to load search page: %w", err)
	}

	if doc, err := page.Snapshot(ctx); err == nil {
		title, _ := page.Title(ctx)
		if kind := browser.DetectChallenge(title, doc); kind != "" {
			return nil, fmt.Errorf("%w: %s", ErrBlocked, kind)
		}
	}

	return Poll(ctx, page, r.locator, r.poll)
}
