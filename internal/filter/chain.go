package filter

import (
	"context"
	"fmt"
	"log/slog"
)

// Chain executes a sequence of filters in order.
type Chain struct {
	filters []Filter
	logger  *slog.Logger
}

// NewChain creates a new filter chain.
func NewChain(logger *slog.Logger, filters ...Filter) *Chain {
	return &Chain{
		filters: filters,
		logger:  logger,
	}
}

// Process runs all filters in sequence on the given context.
// Filters that only apply to filtered or unfinished requests check
// fc.Filtered and fc.Halted themselves, so bookkeeping filters such as
// audit still see every decision.
func (c *Chain) Process(ctx context.Context, fc *FilterContext) error {
	for _, f := range c.filters {
		if err := f.Process(ctx, fc); err != nil {
			return fmt.Errorf("filter %q: %w", f.Name(), err)
		}
		c.logger.Debug("filter executed",
			"filter", f.Name(),
			"method", fc.Method,
			"path", fc.Path,
			"filtered", fc.Filtered,
			"outcome", fc.Outcome,
			"halted", fc.Halted,
		)
	}
	return nil
}
