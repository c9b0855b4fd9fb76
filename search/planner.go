// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package search

import (
	"slices"

	"github.com/poiesic/trigrep/core"
)

// Plan is the outcome of intersecting a pattern's trigrams against the
// posting table: the candidate files that may contain the pattern. The set
// over-approximates; verification trims it to real matches.
type Plan struct {
	Trigrams   []core.Trigram
	Candidates core.PostingList
	// FullScan is set when the pattern carried no trigram constraint and
	// every indexed file is a candidate.
	FullScan bool
}

// BuildPlan intersects the pattern's trigram posting lists, shortest
// first, stopping as soon as the intersection is empty. A pattern without
// trigrams plans a full scan over all indexed files.
func BuildPlan(s *core.Snapshot, p *Pattern) *Plan {
	trigrams := p.Trigrams()
	if len(trigrams) == 0 {
		return &Plan{Candidates: s.AllFiles(), FullScan: true}
	}

	lists := make([]core.PostingList, 0, len(trigrams))
	for _, t := range trigrams {
		list, ok := s.Postings[t]
		if !ok {
			// A required trigram absent from the index: no file matches.
			return &Plan{Trigrams: trigrams}
		}
		lists = append(lists, list)
	}

	// Shortest list first keeps the running intersection small.
	slices.SortFunc(lists, func(a, b core.PostingList) int {
		return len(a) - len(b)
	})

	candidates := lists[0]
	for _, list := range lists[1:] {
		candidates = intersect(candidates, list)
		if len(candidates) == 0 {
			break
		}
	}
	return &Plan{Trigrams: trigrams, Candidates: candidates}
}

// intersect merges two strictly-increasing posting lists in linear time.
func intersect(a, b core.PostingList) core.PostingList {
	out := make(core.PostingList, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
