package parser

import (
	"context"
	"fmt"
	"log/slog"

	"ArticlesRewriter/internal/config"
	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/ports"
	"ArticlesRewriter/internal/scanner"
)

// StrategySource implements ListingSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

var _ ports.ListingSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log,
	}
}

// FetchListing walks configured sites in order until limit items are collected.
// A limit of zero or less means no bound. Links repeated across sites are kept once.
func (s *StrategySource) FetchListing(ctx context.Context, limit int) ([]domain.SourceItem, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("fetch listing", "sites", len(s.sites), "limit", limit)

	var aggregated []domain.SourceItem
	seen := map[string]struct{}{}
	for _, site := range s.sites {
		remaining := 0
		if limit > 0 {
			remaining = limit - len(aggregated)
			if remaining <= 0 {
				break
			}
		}

		s.debug("process site", "site", site.Name, "scanner", site.Scanner)
		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", site.Name, err)
		}

		req := scanner.Request{
			SiteName:     site.Name,
			ListURL:      site.ListURL,
			Limit:        remaining,
			FetchTimeout: site.FetchTimeout,
			Options:      site.Options,
		}

		results, err := strategy.Scan(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("scan site %s: %w", site.Name, err)
		}

		for _, item := range results {
			if _, dup := seen[item.Link]; dup {
				continue
			}
			seen[item.Link] = struct{}{}
			if item.Site == "" {
				item.Site = site.Name
			}
			aggregated = append(aggregated, item)
			if limit > 0 && len(aggregated) >= limit {
				break
			}
		}
		s.debug("site produced items", "site", site.Name, "count", len(results))
	}

	s.debug("strategy source done", "total_items", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
