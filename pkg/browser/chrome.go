package browser

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/jmylchreest/inspectai/internal/logger"
)

// Chrome/Chromium binaries, short names first so PATH wins.
var chromeBinaryNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/snap/bin/chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
}

// FindChromePath searches for a Chrome/Chromium binary on the system.
// Returns empty string if none is found, leaving chromedp to its own lookup.
func FindChromePath() string {
	for _, name := range chromeBinaryNames {
		if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
			if info, err := os.Stat(name); err == nil && !info.IsDir() {
				logger.Debug("found Chrome binary", "path", name)
				return name
			}
			continue
		}
		if path, err := exec.LookPath(name); err == nil {
			logger.Debug("found Chrome binary", "name", name, "path", path)
			return path
		}
	}
	logger.Warn("no Chrome binary found, relying on chromedp defaults")
	return ""
}
