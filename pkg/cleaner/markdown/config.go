// Package markdown folds an HTML subtree into a compact Markdown document.
//
// It is tuned for AI answer panels and picked page fragments rather than
// full-fidelity conversion: headings collapse to a single level, link
// targets are dropped, and list items are flattened to one line each.
package markdown

// Config controls element classification and emission.
type Config struct {
	// IgnoredTags are skipped together with their subtree.
	IgnoredTags []string

	// CodeBlockSelector matches non-pre containers rendered as fenced code.
	CodeBlockSelector string

	// CodeLanguageSelector matches the label element holding a code block's language.
	CodeLanguageSelector string

	// HeadingPrefix is emitted for every heading level.
	HeadingPrefix string

	// PassThroughAttrs mark block containers whose content is emitted unwrapped.
	PassThroughAttrs []string
}

// DefaultConfig returns the configuration used for search AI answer panels.
func DefaultConfig() *Config {
	return &Config{
		IgnoredTags:          []string{"button", "svg", "video", "script", "style"},
		CodeBlockSelector:    "div.r1PmQe",
		CodeLanguageSelector: "div.vVRw1d",
		HeadingPrefix:        "###",
		PassThroughAttrs:     []string{"data-subtree"},
	}
}
