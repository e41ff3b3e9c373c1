// Package tags implements the tag-intelligence layer: frequency aggregation
// over a content subtree, fuzzy duplicate detection, and bulk rename/merge/
// removal with a preview-before-commit workflow.
package tags

import (
	"context"
	"log/slog"
	"strings"

	"tagsmith/internal/logging"
	"tagsmith/internal/repo"
)

// Aggregator walks a subtree's search results and produces tag frequency
// counts.
type Aggregator struct {
	client *repo.Client
	logger *slog.Logger
}

// NewAggregator builds an Aggregator over the given gateway client.
func NewAggregator(client *repo.Client, logger *slog.Logger) *Aggregator {
	return &Aggregator{client: client, logger: logging.WithComponent(logger, "tags")}
}

// Collect returns tag frequencies for every item under path. Duplicate
// occurrences within one item each count; an authenticated endpoint with zero
// items yields an empty map, not an error.
func (a *Aggregator) Collect(ctx context.Context, path string, skipAuth bool) (map[string]int, error) {
	if strings.TrimSpace(a.client.Base()) == "" {
		return nil, repo.ErrNotAuthenticated
	}

	items, err := a.client.SearchAllMetadata(ctx, path, skipAuth)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for i := range items {
		for _, subject := range items[i].Subjects() {
			counts[subject]++
		}
	}
	a.logger.Debug("collected tag counts",
		logging.Int("items", len(items)),
		logging.Int("tags", len(counts)),
		logging.String("path", path))
	return counts, nil
}
