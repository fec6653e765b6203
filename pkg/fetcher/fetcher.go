// Package fetcher loads a page's HTML for the non-interactive commands
// (clean, ask) when the input is a URL rather than a file.
package fetcher

import (
	"context"
	"errors"
	"time"
)

// Fetcher abstracts page fetching strategies.
type Fetcher interface {
	// Fetch retrieves page content from a URL.
	Fetch(ctx context.Context, url string, opts Options) (Content, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Type returns "static" or "dynamic".
	Type() string
}

// Options controls fetching behavior.
type Options struct {
	UserAgent       string
	Timeout         time.Duration
	WaitForSelector string        // CSS selector to wait for (dynamic fetchers)
	WaitDuration    time.Duration // Additional wait after load
	Headers         map[string]string
	MaxBytes        int // 0 = unlimited
}

// Content represents fetched page data.
type Content struct {
	URL         string
	HTML        string
	Title       string
	StatusCode  int
	ContentType string
	FetchedAt   time.Time
}

// Error types for distinguishing failure reasons.
var (
	// ErrAntiBot indicates the site served a challenge or block page.
	ErrAntiBot = errors.New("anti-bot protection detected")
	// ErrChallengeTimeout indicates a timeout, usually a challenge that never resolved.
	ErrChallengeTimeout = errors.New("challenge timeout")
	// ErrTooLarge indicates the page exceeded Options.MaxBytes.
	ErrTooLarge = errors.New("content exceeds size limit")
)
