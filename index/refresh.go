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


package index

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/trigrep/core"
)

// Refresh rebuilds the index over prev.Root, reusing work for files whose
// size and modification time are unchanged since prev was built: their
// trigram sets are recovered from the previous snapshot instead of
// re-reading and re-tokenizing the content. New and changed files are
// indexed from disk; deleted files drop out. The result is a brand-new
// sealed snapshot with FileIDs reassigned in lexical order.
func (b *Builder) Refresh(ctx context.Context, prev *core.Snapshot) (*core.Snapshot, *BuildReport, error) {
	if prev == nil {
		return nil, nil, ErrSnapshotRequired
	}
	// A fold-mode change invalidates every previous trigram set; nothing
	// can be reused.
	if prev.FoldCase != b.foldCase {
		return b.Build(ctx, prev.Root)
	}
	start := time.Now()

	prevByPath := make(map[string]*core.FileRecord, len(prev.Files))
	for i := range prev.Files {
		prevByPath[prev.Files[i].Path] = &prev.Files[i]
	}
	prevTrigrams := invertPostings(prev)

	pool, err := ants.NewPool(b.poolSize)
	if err != nil {
		return nil, nil, err
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		shards  shardSet
		records []*core.FileRecord
		skipped []SkippedFile
		reused  int
	)

	submit := func(task func()) {
		wg.Add(1)
		wrapped := func() {
			defer wg.Done()
			task()
		}
		if err := pool.Submit(wrapped); err != nil {
			wrapped()
		}
	}

	_, scanErr := b.walker.Scan(ctx, prev.Root, func(meta FileMeta) error {
		id := core.FileID(len(records))

		if old, ok := prevByPath[meta.Path]; ok &&
			old.Size == meta.Size && old.ModTime.Equal(meta.ModTime) {
			rec := &core.FileRecord{
				ID:          id,
				Path:        meta.Path,
				Size:        meta.Size,
				ModTime:     meta.ModTime,
				Fingerprint: old.Fingerprint,
				LineOffsets: old.LineOffsets,
			}
			records = append(records, rec)
			reused++

			tris := prevTrigrams[old.ID]
			submit(func() {
				for _, t := range tris {
					shards.add(t, rec.ID)
				}
			})
			return nil
		}

		content, skip := b.walker.load(meta)
		if skip != nil {
			skipped = append(skipped, *skip)
			return nil
		}
		rec := &core.FileRecord{
			ID:      id,
			Path:    meta.Path,
			Size:    meta.Size,
			ModTime: meta.ModTime,
		}
		records = append(records, rec)
		submit(func() {
			b.indexFile(rec, content, &shards)
		})
		return nil
	})
	wg.Wait()

	if scanErr != nil {
		return nil, nil, scanErr
	}
	if len(records) == 0 && !b.allowEmpty {
		return nil, nil, ErrNoFiles
	}

	snapshot := b.seal(prev.Root, records, &shards)
	report := &BuildReport{
		Indexed:  len(records) - reused,
		Reused:   reused,
		Skipped:  skipped,
		Duration: time.Since(start),
	}

	b.logger.Info("index refreshed",
		"root", prev.Root,
		"files", snapshot.FileCount(),
		"reused", reused,
		"reindexed", report.Indexed,
		"duration", report.Duration)

	return snapshot, report, nil
}

// invertPostings recovers the per-file trigram sets from a snapshot's
// posting lists, in one pass over the table.
func invertPostings(s *core.Snapshot) map[core.FileID][]core.Trigram {
	byFile := make(map[core.FileID][]core.Trigram, len(s.Files))
	for t, list := range s.Postings {
		for _, id := range list {
			byFile[id] = append(byFile[id], t)
		}
	}
	return byFile
}
