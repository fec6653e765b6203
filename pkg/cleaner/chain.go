package cleaner

import (
	"fmt"
	"strings"
)

// ChainCleaner applies multiple cleaners in sequence, e.g. sanitize then
// markdown for `inspectai clean --markdown`.
type ChainCleaner struct {
	cleaners []Cleaner
}

// NewChain creates a cleaner that applies the given cleaners in order.
//
// Example:
//
//	chain := cleaner.NewChain(
//	    sanitize.New(sanitize.ScrapeConfig()),
//	    markdown.New(nil),
//	)
func NewChain(cleaners ...Cleaner) *ChainCleaner {
	return &ChainCleaner{cleaners: cleaners}
}

// Clean applies all cleaners in sequence. The first failing stage aborts
// the chain and is named in the error.
func (c *ChainCleaner) Clean(content string) (string, error) {
	var err error
	for _, stage := range c.cleaners {
		content, err = stage.Clean(content)
		if err != nil {
			return "", fmt.Errorf("%s: %w", stage.Name(), err)
		}
	}
	return content, nil
}

// Name returns the names of all chained cleaners.
func (c *ChainCleaner) Name() string {
	names := make([]string, len(c.cleaners))
	for i, stage := range c.cleaners {
		names[i] = stage.Name()
	}
	return "chain(" + strings.Join(names, "->") + ")"
}

var _ Cleaner = (*ChainCleaner)(nil)
