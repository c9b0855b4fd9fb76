package index

import (
	"iter"

	"github.com/poiesic/trigrep/core"
)

// Trigrams yields every overlapping trigram of data together with its byte
// offset. The sequence is lazy and restartable; content shorter than three
// bytes yields nothing. Such files can never satisfy a trigram lookup and
// are reached only through the planner's full-scan fallback.
func Trigrams(data []byte) iter.Seq2[core.Trigram, int] {
	return func(yield func(core.Trigram, int) bool) {
		for i := 0; i+core.TrigramLen <= len(data); i++ {
			if !yield(core.TrigramAt(data, i), i) {
				return
			}
		}
	}
}

// UniqueTrigrams collects the deduplicated trigram set of data, in first-seen
// order. A trigram occurring fifty times in a file still contributes a single
// posting.
func UniqueTrigrams(data []byte) []core.Trigram {
	if len(data) < core.TrigramLen {
		return nil
	}
	seen := make(map[core.Trigram]struct{}, len(data)/2)
	out := make([]core.Trigram, 0, len(data)/2)
	for t := range Trigrams(data) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// LineOffsets returns the byte offset of every line start in data, including
// line one at offset zero. Empty content has no lines.
func LineOffsets(data []byte) []uint32 {
	if len(data) == 0 {
		return nil
	}
	offsets := []uint32{0}
	for i, b := range data {
		if b == '\n' && i+1 < len(data) {
			offsets = append(offsets, uint32(i+1))
		}
	}
	return offsets
}
