// Package browser owns the Chrome instance InspectAI drives: the visible
// window the user picks elements in, and the headless tabs used for search
// scraping and dynamic fetches.
package browser

import (
	"time"
)

// Config holds configuration for a browser instance.
type Config struct {
	UserAgent  string
	Timeout    time.Duration // per Fetch; tabs opened directly are unbounded
	Headless   bool
	Stealth    bool   // inject the stealth script and use the evasion flags
	ChromePath string // empty means search the usual install locations
	Width      int
	Height     int
}

// DefaultConfig returns sensible defaults for a headless browser.
func DefaultConfig() Config {
	return Config{
		UserAgent: defaultUserAgent,
		Timeout:   30 * time.Second,
		Headless:  true,
		Stealth:   true,
		Width:     1920,
		Height:    1080,
	}
}

// VisibleConfig returns defaults for the window the user interacts with.
func VisibleConfig() Config {
	cfg := DefaultConfig()
	cfg.Headless = false
	cfg.Width = 1280
	cfg.Height = 900
	return cfg
}

// Google serves AI Mode only to browsers it recognises, so we present as desktop Chrome.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
