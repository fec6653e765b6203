package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// StealthScript hides the most common headless-automation tells.
// It runs before any page script on every new document.
const StealthScript = `
(function() {
    'use strict';

    Object.defineProperty(navigator, 'webdriver', { get: () => undefined, configurable: true });
    delete Object.getPrototypeOf(navigator).webdriver;

    Object.defineProperty(navigator, 'languages', {
        get: () => Object.freeze(['en-US', 'en']),
        configurable: true
    });

    if (navigator.plugins.length === 0) {
        Object.defineProperty(navigator, 'plugins', {
            get: () => [{ name: 'Chrome PDF Viewer', filename: 'internal-pdf-viewer', description: '' }],
            configurable: true
        });
    }

    if (!window.chrome) {
        Object.defineProperty(window, 'chrome', { value: {}, writable: true, configurable: false });
    }
    if (!window.chrome.runtime) {
        window.chrome.runtime = { connect: function() {}, sendMessage: function() {} };
    }

    const originalQuery = window.navigator.permissions && window.navigator.permissions.query;
    if (originalQuery) {
        window.navigator.permissions.query = (parameters) =>
            parameters.name === 'notifications'
                ? Promise.resolve({ state: Notification.permission })
                : originalQuery(parameters);
    }
})();
`

// allocatorOptions builds the exec allocator flags for cfg.
func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(cfg.Width, cfg.Height),
	)
	if cfg.Stealth {
		opts = append(opts,
			chromedp.Flag("excludeSwitches", "enable-automation"),
			chromedp.Flag("useAutomationExtension", false),
			chromedp.Flag("disable-infobars", true),
			chromedp.Flag("lang", "en-US,en"),
			chromedp.Flag("accept-lang", "en-US,en;q=0.9"),
		)
	}
	if !cfg.Headless {
		// The picker window must not be throttled while it sits behind the terminal.
		opts = append(opts,
			chromedp.Flag("disable-background-timer-throttling", true),
			chromedp.Flag("disable-renderer-backgrounding", true),
		)
	}
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return opts
}

// InjectStealthScript returns an action that registers StealthScript for
// every document loaded in the tab from now on.
func InjectStealthScript() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(StealthScript).Do(ctx)
		return err
	})
}

// CaptureScreenshotOnError takes a best-effort viewport screenshot for debugging.
// Returns nil if the tab is already gone.
func CaptureScreenshotOnError(ctx context.Context) []byte {
	captureCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var screenshot []byte
	if err := chromedp.Run(captureCtx, chromedp.CaptureScreenshot(&screenshot)); err != nil {
		return nil
	}
	return screenshot
}
