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
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/trigrep/core"
)

// ContentSink receives file content as it is indexed, letting a caller
// capture a content snapshot (for example the storage/cache package) that
// the verifier can later read instead of the live tree. Entries are keyed
// by content fingerprint, so they stay valid across rebuilds even though
// FileIDs are reassigned.
type ContentSink interface {
	Put(fingerprint uint64, content []byte) error
}

// Builder turns a directory tree into a sealed core.Snapshot. It owns the
// mutable posting-list accumulation state for the duration of one build and
// hands off a frozen snapshot; nothing else ever mutates posting lists.
type Builder struct {
	walker      *Walker
	poolSize    int
	foldCase    bool
	lineOffsets bool
	allowEmpty  bool
	sink        ContentSink
	logger      *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder) error

// WithWalker sets a custom walker. Default is NewWalker().
func WithWalker(w *Walker) Option {
	return func(b *Builder) error {
		if w != nil {
			b.walker = w
		}
		return nil
	}
}

// WithPoolSize sets the worker pool size for per-file tokenizing.
// Default is runtime.NumCPU().
func WithPoolSize(size int) Option {
	return func(b *Builder) error {
		if size < 1 {
			size = 1
		}
		b.poolSize = size
		return nil
	}
}

// WithFoldCase builds a case-folded index: content and, later, patterns are
// ASCII-lowercased so searches are case-insensitive.
func WithFoldCase() Option {
	return func(b *Builder) error {
		b.foldCase = true
		return nil
	}
}

// WithoutLineOffsets disables per-file line-offset tables, trading query
// speed for a smaller index.
func WithoutLineOffsets() Option {
	return func(b *Builder) error {
		b.lineOffsets = false
		return nil
	}
}

// WithAllowEmpty permits sealing a snapshot over a tree with no indexable
// files instead of failing with ErrNoFiles.
func WithAllowEmpty() Option {
	return func(b *Builder) error {
		b.allowEmpty = true
		return nil
	}
}

// WithContentSink attaches a content snapshot sink.
func WithContentSink(sink ContentSink) Option {
	return func(b *Builder) error {
		b.sink = sink
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) (*Builder, error) {
	walker, err := NewWalker()
	if err != nil {
		return nil, err
	}

	b := &Builder{
		walker:      walker,
		poolSize:    runtime.NumCPU(),
		lineOffsets: true,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// BuildReport summarizes one build.
type BuildReport struct {
	Indexed  int
	Reused   int // files carried over unchanged by Refresh
	Skipped  []SkippedFile
	Duration time.Duration
}

// Build walks root, tokenizes every eligible file in parallel, and returns
// a sealed snapshot. FileIDs follow lexical discovery order, so building an
// unchanged tree twice yields structurally identical snapshots.
func (b *Builder) Build(ctx context.Context, root string) (*core.Snapshot, *BuildReport, error) {
	start := time.Now()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, err
	}

	pool, err := ants.NewPool(b.poolSize)
	if err != nil {
		return nil, nil, err
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		shards  shardSet
		records []*core.FileRecord
	)

	walkReport, walkErr := b.walker.Walk(ctx, absRoot, func(f File) error {
		id := core.FileID(len(records))
		rec := &core.FileRecord{
			ID:      id,
			Path:    f.Path,
			Size:    f.Size,
			ModTime: f.ModTime,
		}
		records = append(records, rec)

		wg.Add(1)
		task := func() {
			defer wg.Done()
			b.indexFile(rec, f.Content, &shards)
		}
		if err := pool.Submit(task); err != nil {
			// Pool rejected the task; do the work on the walking goroutine.
			task()
		}
		return nil
	})
	wg.Wait()

	if walkErr != nil {
		return nil, nil, walkErr
	}
	if len(records) == 0 && !b.allowEmpty {
		return nil, nil, ErrNoFiles
	}

	snapshot := b.seal(absRoot, records, &shards)
	report := &BuildReport{
		Indexed:  len(records),
		Skipped:  walkReport.Skipped,
		Duration: time.Since(start),
	}

	b.logger.Info("index built",
		"root", absRoot,
		"files", snapshot.FileCount(),
		"trigrams", snapshot.TrigramCount(),
		"skipped", len(report.Skipped),
		"duration", report.Duration)

	return snapshot, report, nil
}

// indexFile runs on a pool worker. Distinct files share no state; all
// cross-file coordination happens inside the sharded accumulator.
func (b *Builder) indexFile(rec *core.FileRecord, content []byte, shards *shardSet) {
	rec.Fingerprint = core.FingerprintContent(content)
	if b.lineOffsets {
		rec.LineOffsets = LineOffsets(content)
	}

	data := content
	if b.foldCase {
		data = core.FoldASCII(content)
	}
	for _, t := range UniqueTrigrams(data) {
		shards.add(t, rec.ID)
	}

	if b.sink != nil {
		if err := b.sink.Put(rec.Fingerprint, content); err != nil {
			b.logger.Warn("content sink write failed", "path", rec.Path, "err", err)
		}
	}
}

// seal is the single-threaded finalize barrier: it merges the shards, sorts
// every posting list into strictly increasing order, and freezes the
// snapshot.
func (b *Builder) seal(absRoot string, records []*core.FileRecord, shards *shardSet) *core.Snapshot {
	files := make([]core.FileRecord, len(records))
	for i, rec := range records {
		files[i] = *rec
	}

	return &core.Snapshot{
		Root:     absRoot,
		BuiltAt:  time.Now(),
		FoldCase: b.foldCase,
		Files:    files,
		Postings: shards.finalize(),
	}
}

// shardSet accumulates posting lists under 256 per-bucket locks, keyed by
// the trigram's first byte. Workers for distinct files contend only when
// they touch the same bucket, so no global lock serializes the build.
type shardSet [256]trigramShard

type trigramShard struct {
	mu    sync.Mutex
	lists map[core.Trigram][]core.FileID
}

func (s *shardSet) add(t core.Trigram, id core.FileID) {
	sh := &s[t[0]]
	sh.mu.Lock()
	if sh.lists == nil {
		sh.lists = make(map[core.Trigram][]core.FileID)
	}
	sh.lists[t] = append(sh.lists[t], id)
	sh.mu.Unlock()
}

// finalize merges all shards into one table. Each list holds exactly one
// entry per file (within-file dedup happened at tokenization), so sorting
// is all that is needed to establish the strictly-increasing invariant.
func (s *shardSet) finalize() map[core.Trigram]core.PostingList {
	total := 0
	for i := range s {
		total += len(s[i].lists)
	}
	postings := make(map[core.Trigram]core.PostingList, total)
	for i := range s {
		for t, ids := range s[i].lists {
			slices.Sort(ids)
			postings[t] = core.PostingList(ids)
		}
	}
	return postings
}
