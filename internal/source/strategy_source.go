package source

import (
	"context"
	"fmt"
	"log/slog"

	"NewsIntent/internal/domain"
	"NewsIntent/internal/logging"
	"NewsIntent/internal/ports"
)

// StrategySource implements FeedSource over one or more registered strategies.
type StrategySource struct {
	strategies []Strategy
	logger     *slog.Logger
}

var _ ports.FeedSource = (*StrategySource)(nil)

// NewStrategySource resolves the configured names up front so that a typo fails at startup.
func NewStrategySource(reg *Registry, names []string, log *slog.Logger) (*StrategySource, error) {
	if reg == nil {
		return nil, fmt.Errorf("source registry is not configured")
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no feed sources configured")
	}

	strategies := make([]Strategy, 0, len(names))
	for _, name := range names {
		strategy, err := reg.Resolve(name)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, strategy)
	}

	return &StrategySource{strategies: strategies, logger: logging.OrDiscard(log)}, nil
}

// Fetch queries every strategy in order and stops at maxResults; maxResults <= 0 means no bound.
// A link already returned by an earlier strategy is skipped, while entries within one
// strategy are kept as that strategy produced them.
// Each strategy gets the full budget since duplicates are only known after merging.
func (s *StrategySource) Fetch(ctx context.Context, query domain.Query, maxResults int) []domain.FeedEntry {
	var aggregated []domain.FeedEntry
	seen := map[string]struct{}{}

	for _, strategy := range s.strategies {
		if maxResults > 0 && len(aggregated) >= maxResults {
			break
		}
		if ctx.Err() != nil {
			break
		}

		results := strategy.Fetch(ctx, query, maxResults)
		links := make([]string, 0, len(results))
		for _, entry := range results {
			if _, dup := seen[entry.RawLink]; dup && entry.RawLink != "" {
				continue
			}
			aggregated = append(aggregated, entry)
			links = append(links, entry.RawLink)
			if maxResults > 0 && len(aggregated) >= maxResults {
				break
			}
		}
		for _, link := range links {
			seen[link] = struct{}{}
		}
		s.logger.Debug("source produced entries", "source", strategy.Name(), "entity", query.Entity(), "count", len(links))
	}

	if aggregated == nil {
		return []domain.FeedEntry{}
	}
	return aggregated
}
