package tags

import (
	"context"
	"log/slog"
	"slices"

	"tagsmith/internal/logging"
	"tagsmith/internal/repo"
)

// previewCap limits how many affected items the preview displays.
const previewCap = 10

// PreviewEntry shows one affected item's current and proposed tag sequences.
type PreviewEntry struct {
	Title    string   `json:"title"`
	Current  []string `json:"current"`
	Proposed []string `json:"updated"`
}

// Result tallies a bulk mutation's outcome.
type Result struct {
	Updated int            `json:"updated"`
	Errors  int            `json:"errors"`
	Items   int            `json:"items"`
	Preview []PreviewEntry `json:"preview,omitempty"`
	DryRun  bool           `json:"dry_run"`
	Message string         `json:"message,omitempty"`
}

// Mutator orchestrates merge, rename, and remove operations over tagged items.
type Mutator struct {
	client *repo.Client
	logger *slog.Logger
}

// NewMutator builds a Mutator over the given gateway client.
func NewMutator(client *repo.Client, logger *slog.Logger) *Mutator {
	return &Mutator{client: client, logger: logging.WithComponent(logger, "mutate")}
}

// Merge folds every source tag into target on all items carrying one of the
// sources. With dryRun the result carries the preview and affected count but
// nothing is written.
func (m *Mutator) Merge(ctx context.Context, sources []string, target, path string, dryRun, skipAuth bool) (*Result, error) {
	return m.apply(ctx, sources, target, path, dryRun, skipAuth)
}

// Rename is merge with a single source.
func (m *Mutator) Rename(ctx context.Context, oldTag, newTag, path string, dryRun, skipAuth bool) (*Result, error) {
	return m.apply(ctx, []string{oldTag}, newTag, path, dryRun, skipAuth)
}

// Remove strips the tag from every item carrying it; no destination tag is
// appended.
func (m *Mutator) Remove(ctx context.Context, tag, path string, dryRun, skipAuth bool) (*Result, error) {
	return m.apply(ctx, []string{tag}, "", path, dryRun, skipAuth)
}

func (m *Mutator) apply(ctx context.Context, sources []string, target, path string, dryRun, skipAuth bool) (*Result, error) {
	items, err := m.collect(ctx, sources, path, skipAuth)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return &Result{DryRun: dryRun, Message: "No matching items found."}, nil
	}

	preview := make([]PreviewEntry, 0, previewCap)
	for i := range items {
		if i >= previewCap {
			break
		}
		current := items[i].Subjects()
		preview = append(preview, PreviewEntry{
			Title:    items[i].DisplayTitle(),
			Current:  current,
			Proposed: rewriteSubjects(current, sources, target),
		})
	}

	if dryRun {
		return &Result{Items: len(items), Preview: preview, DryRun: true}, nil
	}

	base := m.client.Base()
	result := &Result{Items: len(items), Preview: preview}
	for i := range items {
		proposed := rewriteSubjects(items[i].Subjects(), sources, target)
		if err := m.client.UpdateSubjects(ctx, items[i].RelPath(base), proposed, skipAuth); err != nil {
			// Per-item isolation: one failure never aborts the batch.
			result.Errors++
			m.logger.Warn("item update failed",
				logging.String("item", items[i].ID),
				logging.Error(err))
			continue
		}
		result.Updated++
	}
	m.logger.Info("bulk mutation complete",
		logging.Int("updated", result.Updated),
		logging.Int("errors", result.Errors),
		logging.Int("items", result.Items))
	return result, nil
}

// collect searches per source tag and merges results keyed by item identity,
// so an item matching multiple source tags is processed once. First-seen
// order is preserved.
func (m *Mutator) collect(ctx context.Context, sources []string, path string, skipAuth bool) ([]repo.Item, error) {
	seen := make(map[string]struct{})
	var merged []repo.Item
	for _, source := range sources {
		items, err := m.client.SearchBySubject(ctx, source, path, skipAuth)
		if err != nil {
			return nil, err
		}
		for i := range items {
			if items[i].ID == "" {
				continue
			}
			if _, ok := seen[items[i].ID]; ok {
				continue
			}
			seen[items[i].ID] = struct{}{}
			merged = append(merged, items[i])
		}
	}
	return merged, nil
}

// rewriteSubjects removes every source tag and, when a target is given,
// appends it unless already present.
func rewriteSubjects(current, sources []string, target string) []string {
	proposed := make([]string, 0, len(current)+1)
	for _, tag := range current {
		if slices.Contains(sources, tag) {
			continue
		}
		proposed = append(proposed, tag)
	}
	if target != "" && !slices.Contains(proposed, target) {
		proposed = append(proposed, target)
	}
	return proposed
}
