// Package sanitize produces the cleaned element tree sent to AI backends:
// a deep copy of a picked subtree with noisy tags, comments and
// non-semantic attributes removed.
//
// The input tree is never modified. All mutation happens on a clone.
package sanitize

import (
	"fmt"
	"sort"
)

// Placeholder replaces attribute values that are dropped for size.
const Placeholder = "..."

// DefaultMaxAttrLen is the longest attribute value kept verbatim.
const DefaultMaxAttrLen = 50

// Config controls what the sanitizer removes.
type Config struct {
	// RemoveTags lists elements removed together with their subtree.
	RemoveTags []string `json:"remove_tags" yaml:"remove_tags"`

	// AllowedAttributes is the attribute allow-list. Everything else is dropped.
	AllowedAttributes []string `json:"allowed_attributes" yaml:"allowed_attributes"`

	// MaxAttrLen is the longest value (in runes) kept as-is. Longer values,
	// and every src value, are replaced with Placeholder.
	MaxAttrLen int `json:"max_attr_len" yaml:"max_attr_len"`
}

// DefaultConfig is the configuration used for manually picked elements.
func DefaultConfig() *Config {
	return &Config{
		RemoveTags: []string{"script", "style", "link", "meta", "noscript", "iframe", "svg"},
		AllowedAttributes: []string{
			"src", "alt", "href", "title", "value", "placeholder", "aria-label", "role",
		},
		MaxAttrLen: DefaultMaxAttrLen,
	}
}

// ScrapeConfig is the configuration used on the scrape path, where
// interactive controls and media in the answer panel are noise.
func ScrapeConfig() *Config {
	cfg := DefaultConfig()
	cfg.RemoveTags = append(cfg.RemoveTags, "button", "video")
	return cfg
}

var presets = map[string]func() *Config{
	"default": DefaultConfig,
	"scrape":  ScrapeConfig,
}

// Preset returns a named configuration.
func Preset(name string) (*Config, error) {
	fn, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown sanitize preset %q (available: %v)", name, PresetNames())
	}
	return fn(), nil
}

// PresetNames lists the registered presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
