package scrape

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/inspectai/internal/logger"
	"github.com/jmylchreest/inspectai/pkg/poll"
)

// Source yields the current document of a live page.
type Source interface {
	Snapshot(ctx context.Context) (string, error)
}

// Poll samples src until loc finds a complete answer or cfg is exhausted.
func Poll(ctx context.Context, src Source, loc *Locator, cfg poll.Config) (*Result, error) {
	result, attempts, err := poll.Run(ctx, cfg, func(ctx context.Context, attempt int) (*Result, bool, error) {
		page, err := src.Snapshot(ctx)
		if err != nil {
			return nil, false, err
		}
		res, err := loc.ExtractFrom(page)
		if err != nil {
			return nil, false, err
		}
		return res, true, nil
	})
	if err != nil {
		if errors.Is(err, poll.ErrExhausted) {
			return nil, fmt.Errorf("%w: %v", ErrExtractionTimeout, err)
		}
		return nil, err
	}

	logger.Debug("answer extracted",
		"attempts", attempts,
		"selector", result.Selector,
		"markdown_len", len(result.Markdown))
	return result, nil
}
