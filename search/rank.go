package search

import (
	"sort"

	"github.com/poiesic/trigrep/core"
)

// rank reorders matches so the most relevant files come first. A file's
// score is its hit count weighted by pattern length, so many occurrences
// of a long pattern outrank a single incidental hit. Ties break on path;
// matches within a file stay in offset order.
func rank(matches []core.Match, patternLen int) {
	if len(matches) == 0 {
		return
	}

	scores := make(map[core.FileID]int, len(matches))
	for _, m := range matches {
		scores[m.File]++
	}
	for id, hits := range scores {
		scores[id] = hits * patternLen
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.File == b.File {
			return a.Offset < b.Offset
		}
		if scores[a.File] != scores[b.File] {
			return scores[a.File] > scores[b.File]
		}
		return a.Path < b.Path
	})
}
