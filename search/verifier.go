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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/trigrep/core"
	"github.com/poiesic/trigrep/index"
)

// ContentSource supplies file content during verification. The default
// reads from the working tree; a build-time content cache can stand in to
// verify against the exact bytes the index saw.
type ContentSource interface {
	Content(rec *core.FileRecord) ([]byte, error)
}

// diskSource reads candidate files from the indexed tree.
type diskSource struct {
	root string
}

func (d diskSource) Content(rec *core.FileRecord) ([]byte, error) {
	return os.ReadFile(filepath.Join(d.root, filepath.FromSlash(rec.Path)))
}

// StaleReason says how a candidate diverged from the snapshot.
type StaleReason string

const (
	// StaleMissing: the file no longer exists.
	StaleMissing StaleReason = "missing"
	// StaleChanged: the file's content differs from the indexed content.
	StaleChanged StaleReason = "changed"
	// StaleUnreadable: the file exists but could not be read.
	StaleUnreadable StaleReason = "unreadable"
)

// StaleCandidate records a candidate whose on-disk state diverged from the
// snapshot between build and query. Staleness is reported, never fatal.
type StaleCandidate struct {
	Path   string
	Reason StaleReason
	Err    error
}

// verify reads every candidate in parallel and collects confirmed matches.
// A candidate that changed since the build is still searched in its current
// content, and additionally reported stale so the caller knows the index
// lags the tree.
func verify(ctx context.Context, s *core.Snapshot, plan *Plan, p *Pattern, source ContentSource, poolSize int, monitor SearchMonitor) ([]core.Match, []StaleCandidate, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, nil, err
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		matches []core.Match
		stale   []StaleCandidate
	)

	for _, id := range plan.Candidates {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, nil, err
		}
		rec, ok := s.Record(id)
		if !ok {
			continue
		}

		wg.Add(1)
		task := func() {
			defer wg.Done()
			hits, staleCandidate := verifyCandidate(rec, p, source)

			mu.Lock()
			matches = append(matches, hits...)
			if staleCandidate != nil {
				stale = append(stale, *staleCandidate)
				monitor.CandidateStale(*staleCandidate)
			} else {
				monitor.CandidateVerified(rec.Path, len(hits))
			}
			mu.Unlock()
		}
		if err := pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()

	// Concurrent verification finishes in arbitrary order; restore the
	// snapshot's file order so equal queries give equal output.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].File != matches[j].File {
			return matches[i].File < matches[j].File
		}
		return matches[i].Offset < matches[j].Offset
	})
	return matches, stale, nil
}

// verifyCandidate scans one candidate's content for real occurrences.
func verifyCandidate(rec *core.FileRecord, p *Pattern, source ContentSource) ([]core.Match, *StaleCandidate) {
	content, err := source.Content(rec)
	if err != nil {
		reason := StaleUnreadable
		if os.IsNotExist(err) {
			reason = StaleMissing
		}
		return nil, &StaleCandidate{Path: rec.Path, Reason: reason, Err: err}
	}

	var staleCandidate *StaleCandidate
	if core.FingerprintContent(content) != rec.Fingerprint {
		staleCandidate = &StaleCandidate{Path: rec.Path, Reason: StaleChanged}
	}

	offsets := p.FindAll(content)
	if len(offsets) == 0 {
		return nil, staleCandidate
	}

	lineStarts := index.LineOffsets(content)
	matches := make([]core.Match, 0, len(offsets))
	for _, off := range offsets {
		line, text := lineAt(content, lineStarts, off)
		matches = append(matches, core.Match{
			File:   rec.ID,
			Path:   rec.Path,
			Line:   line,
			Offset: int64(off),
			Text:   text,
		})
	}
	return matches, staleCandidate
}

// lineAt resolves a byte offset to its 1-based line number and line text,
// newline excluded.
func lineAt(content []byte, lineStarts []uint32, offset int) (int, string) {
	n := sort.Search(len(lineStarts), func(i int) bool {
		return int(lineStarts[i]) > offset
	})
	if n == 0 {
		return 0, ""
	}
	start := int(lineStarts[n-1])
	end := len(content)
	if i := bytes.IndexByte(content[start:], '\n'); i >= 0 {
		end = start + i
	}
	return n, string(content[start:end])
}
