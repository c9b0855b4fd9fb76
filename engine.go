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

// Package trigrep ties the index builder, the on-disk store and the query
// pipeline into one engine for local trigram-indexed code search.
package trigrep

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/poiesic/trigrep/core"
	"github.com/poiesic/trigrep/index"
	"github.com/poiesic/trigrep/search"
	"github.com/poiesic/trigrep/storage"
	"github.com/poiesic/trigrep/storage/cache"
)

// Engine bundles the building, persistence and querying of indexes. One
// engine serves any number of roots; each root keeps its own index file.
type Engine struct {
	store        *storage.Store
	contentCache *cache.Cache
	builderOpts  []index.Option
	logger       *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	storeDir     string
	cacheContent bool
	builderOpts  []index.Option
	logger       *slog.Logger
}

// WithStoreDir places index files (and the content cache, when enabled)
// under dir instead of the per-user default.
func WithStoreDir(dir string) EngineOption {
	return func(o *engineOptions) { o.storeDir = dir }
}

// WithContentCache mirrors indexed file content into a local cache at
// build time, letting queries verify against the exact bytes the index
// saw even after the tree changes.
func WithContentCache() EngineOption {
	return func(o *engineOptions) { o.cacheContent = true }
}

// WithBuilderOptions forwards options to every index build this engine
// runs.
func WithBuilderOptions(opts ...index.Option) EngineOption {
	return func(o *engineOptions) { o.builderOpts = append(o.builderOpts, opts...) }
}

// WithEngineLogger sets a custom logger.
// Default is slog.Default().
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewEngine creates an engine.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	var storeOpts []storage.StoreOption
	if options.storeDir != "" {
		storeOpts = append(storeOpts, storage.WithDir(options.storeDir))
	}
	storeOpts = append(storeOpts, storage.WithStoreLogger(options.logger))
	store, err := storage.NewStore(storeOpts...)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:       store,
		builderOpts: options.builderOpts,
		logger:      options.logger,
	}
	if options.cacheContent {
		contentCache, err := cache.Open(
			filepath.Join(store.Dir(), "content"),
			cache.WithLogger(options.logger),
		)
		if err != nil {
			return nil, err
		}
		e.contentCache = contentCache
	}
	return e, nil
}

// Close releases the content cache, if one is open.
func (e *Engine) Close() error {
	if e.contentCache != nil {
		if err := e.contentCache.Close(); err != nil {
			e.logger.Error("error closing content cache", "err", err)
			return err
		}
	}
	return nil
}

// BuildIndex builds a fresh index over root and persists it.
func (e *Engine) BuildIndex(ctx context.Context, root string) (*core.Snapshot, *index.BuildReport, error) {
	builder, err := e.newBuilder()
	if err != nil {
		return nil, nil, err
	}
	snapshot, report, err := builder.Build(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	if err := e.persist(snapshot); err != nil {
		return nil, nil, err
	}
	return snapshot, report, nil
}

// RefreshIndex incrementally rebuilds the persisted index for root,
// re-reading only files whose size or modification time changed. Without
// a persisted index it falls back to a full build.
func (e *Engine) RefreshIndex(ctx context.Context, root string) (*core.Snapshot, *index.BuildReport, error) {
	prev, err := e.store.Load(root)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return e.BuildIndex(ctx, root)
		}
		return nil, nil, err
	}

	builder, err := e.newBuilder()
	if err != nil {
		return nil, nil, err
	}
	snapshot, report, err := builder.Refresh(ctx, prev)
	if err != nil {
		return nil, nil, err
	}
	if err := e.persist(snapshot); err != nil {
		return nil, nil, err
	}
	return snapshot, report, nil
}

func (e *Engine) newBuilder() (*index.Builder, error) {
	opts := append([]index.Option{index.WithLogger(e.logger)}, e.builderOpts...)
	if e.contentCache != nil {
		opts = append(opts, index.WithContentSink(e.contentCache))
	}
	return index.NewBuilder(opts...)
}

func (e *Engine) persist(snapshot *core.Snapshot) error {
	if err := e.store.Save(snapshot); err != nil {
		return err
	}
	if e.contentCache != nil {
		if _, err := e.contentCache.Prune(snapshot); err != nil {
			e.logger.Warn("content cache prune failed", "err", err)
		}
	}
	return nil
}

// Persist saves an already-built snapshot to the store.
func (e *Engine) Persist(snapshot *core.Snapshot) error {
	return e.persist(snapshot)
}

// Query runs one pattern against root's persisted snapshot. Callers that
// query repeatedly should hold a Searcher from NewSearcher instead of
// reloading the snapshot per call.
func (e *Engine) Query(ctx context.Context, root, pattern string, opts ...search.QueryOption) ([]core.Match, *search.QueryReport, error) {
	searcher, err := e.NewSearcher(root)
	if err != nil {
		return nil, nil, err
	}
	return searcher.Query(ctx, pattern, opts...)
}

// Load returns the persisted snapshot for root.
func (e *Engine) Load(root string) (*core.Snapshot, error) {
	return e.store.Load(root)
}

// IsStale reports whether root's tree has diverged from its persisted
// snapshot.
func (e *Engine) IsStale(ctx context.Context, root string) (bool, error) {
	snapshot, err := e.store.Load(root)
	if err != nil {
		return false, err
	}
	return storage.IsStale(ctx, snapshot, nil)
}

// Remove deletes the persisted index for root.
func (e *Engine) Remove(root string) error {
	return e.store.Remove(root)
}

// Store exposes the underlying index store.
func (e *Engine) Store() *storage.Store {
	return e.store
}

// NewSearcher creates a searcher over root's persisted snapshot. With a
// content cache open, verification reads the cached build-time content
// instead of the live tree.
func (e *Engine) NewSearcher(root string, opts ...search.Option) (*search.Searcher, error) {
	snapshot, err := e.store.Load(root)
	if err != nil {
		return nil, err
	}
	return e.newSearcherFor(snapshot, opts...)
}

// NewSearcherFor creates a searcher over an already-loaded snapshot.
func (e *Engine) NewSearcherFor(snapshot *core.Snapshot, opts ...search.Option) (*search.Searcher, error) {
	return e.newSearcherFor(snapshot, opts...)
}

func (e *Engine) newSearcherFor(snapshot *core.Snapshot, opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{search.WithLogger(e.logger)}
	if e.contentCache != nil {
		base = append(base, search.WithSource(e.contentCache))
	}
	return search.NewSearcher(snapshot, append(base, opts...)...)
}
