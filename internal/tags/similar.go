package tags

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xrash/smetrics"

	"tagsmith/internal/logging"
)

// Match is one fuzzy comparison result. MatchedAgainst is set only in
// all-pairs mode.
type Match struct {
	Tag            string `json:"tag"`
	Count          int    `json:"count"`
	Score          int    `json:"similarity"`
	MatchedAgainst string `json:"matched,omitempty"`
}

// Engine computes approximate matches between tags using a bounded, pruned
// Jaro-Winkler comparison.
type Engine struct {
	maxLengthDiff int
	board         *Board
	logger        *slog.Logger
}

// NewEngine builds an Engine publishing progress to board. maxLengthDiff is
// the cheap-rejection bound for all-pairs comparisons.
func NewEngine(maxLengthDiff int, board *Board, logger *slog.Logger) *Engine {
	if board == nil {
		board = NewBoard()
	}
	return &Engine{
		maxLengthDiff: maxLengthDiff,
		board:         board,
		logger:        logging.WithComponent(logger, "similarity"),
	}
}

// Board exposes the progress board for pollers.
func (e *Engine) Board() *Board {
	return e.board
}

// score is floor(JaroWinkler * 100) over lowercased operands. The zero boost
// threshold applies the shared-prefix bonus at any Jaro distance, so common
// prefixes always pull spelling variants together.
func score(a, b string) int {
	return int(smetrics.JaroWinkler(a, b, 0, 4) * 100)
}

// Query returns every tag whose similarity to query meets the threshold.
func (e *Engine) Query(query string, counts map[string]int, threshold int) []Match {
	if len(counts) == 0 {
		return nil
	}
	queryLower := strings.ToLower(query)

	matches := make([]Match, 0)
	for tag, count := range counts {
		s := score(queryLower, strings.ToLower(tag))
		if s >= threshold {
			matches = append(matches, Match{Tag: tag, Count: count, Score: s})
		}
	}
	sortMatches(matches)
	return matches
}

// AllPairs compares every unordered pair of distinct tags and emits one match
// per similar pair, keyed by the tag with the larger count (ties favor the
// first operand). scanID correlates progress updates; pass the value returned
// by Board().Begin.
func (e *Engine) AllPairs(scanID string, counts map[string]int, threshold int) []Match {
	if len(counts) == 0 {
		e.board.Finish(scanID, 0, "Found 0 similar pairs")
		return nil
	}

	type entry struct {
		tag   string
		lower string
		count int
	}
	list := make([]entry, 0, len(counts))
	for tag, count := range counts {
		list = append(list, entry{tag: tag, lower: strings.ToLower(tag), count: count})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].tag < list[j].tag })

	matches := make([]Match, 0)
	for i := range list {
		if i%10 == 0 {
			e.board.Update(scanID, i, fmt.Sprintf("Comparing tags: %d/%d", i, len(list)))
		}
		for j := i + 1; j < len(list); j++ {
			diff := len(list[i].lower) - len(list[j].lower)
			if diff < 0 {
				diff = -diff
			}
			if diff > e.maxLengthDiff {
				continue
			}
			s := score(list[i].lower, list[j].lower)
			if s < threshold {
				continue
			}
			if list[i].count >= list[j].count {
				matches = append(matches, Match{Tag: list[i].tag, Count: list[i].count, Score: s, MatchedAgainst: list[j].tag})
			} else {
				matches = append(matches, Match{Tag: list[j].tag, Count: list[j].count, Score: s, MatchedAgainst: list[i].tag})
			}
		}
	}

	sortMatches(matches)
	e.board.Finish(scanID, len(list), fmt.Sprintf("Found %d similar pairs", len(matches)))
	e.logger.Debug("all-pairs scan complete",
		logging.Int("tags", len(list)),
		logging.Int("pairs", len(matches)),
		logging.Int("threshold", threshold))
	return matches
}

// sortMatches orders by score desc, then count desc, then tag name ascending
// case-insensitively.
func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Count != matches[j].Count {
			return matches[i].Count > matches[j].Count
		}
		return strings.ToLower(matches[i].Tag) < strings.ToLower(matches[j].Tag)
	})
}
