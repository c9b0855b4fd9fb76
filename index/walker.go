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
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"
)

const (
	// DefaultMaxFileSize is the default per-file size cap (10 MiB).
	DefaultMaxFileSize int64 = 10 * 1024 * 1024

	// defaultSniffLen is how many leading bytes are examined for a NUL byte
	// when deciding whether a file is binary.
	defaultSniffLen = 8192
)

// defaultExcludedDirs are directory names never descended into. The walker
// also excludes the index's own storage directory name so a tree that
// happens to contain one is not indexed into itself.
var defaultExcludedDirs = []string{
	".git", ".hg", ".svn", ".bzr", "node_modules", "vendor", ".trigrep",
}

// FileMeta is the metadata of an eligible regular file.
type FileMeta struct {
	Path    string // root-relative, slash-separated
	AbsPath string
	Size    int64
	ModTime time.Time
}

// File is an eligible file together with its full content.
type File struct {
	FileMeta
	Content []byte
}

// WalkReport accumulates the outcome of one walk.
type WalkReport struct {
	Visited int
	Skipped []SkippedFile
}

// Walker enumerates regular files under a root in deterministic lexical
// order. Symbolic links and other irregular entries are never followed, so
// link cycles cannot recurse.
type Walker struct {
	excludeDirs  map[string]struct{}
	excludeGlobs []glob.Glob
	maxFileSize  int64
	sniffLen     int
	logger       *slog.Logger
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker) error

// WithExcludeDirs adds directory names to the default exclusion set.
func WithExcludeDirs(names ...string) WalkerOption {
	return func(w *Walker) error {
		for _, name := range names {
			w.excludeDirs[name] = struct{}{}
		}
		return nil
	}
}

// WithExcludeGlobs adds glob patterns matched against root-relative paths.
// Matching files and directories are excluded.
func WithExcludeGlobs(patterns ...string) WalkerOption {
	return func(w *Walker) error {
		for _, pattern := range patterns {
			g, err := glob.Compile(pattern, '/')
			if err != nil {
				return fmt.Errorf("%w: %q: %w", ErrInvalidPattern, pattern, err)
			}
			w.excludeGlobs = append(w.excludeGlobs, g)
		}
		return nil
	}
}

// WithMaxFileSize sets the per-file size cap. Larger files are skipped and
// recorded, not fatal.
func WithMaxFileSize(limit int64) WalkerOption {
	return func(w *Walker) error {
		if limit > 0 {
			w.maxFileSize = limit
		}
		return nil
	}
}

// WithWalkerLogger sets a custom logger.
// Default is slog.Default().
func WithWalkerLogger(logger *slog.Logger) WalkerOption {
	return func(w *Walker) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// NewWalker creates a Walker with the default exclusions.
func NewWalker(opts ...WalkerOption) (*Walker, error) {
	w := &Walker{
		excludeDirs: make(map[string]struct{}, len(defaultExcludedDirs)),
		maxFileSize: DefaultMaxFileSize,
		sniffLen:    defaultSniffLen,
		logger:      slog.Default(),
	}
	for _, name := range defaultExcludedDirs {
		w.excludeDirs[name] = struct{}{}
	}

	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Scan enumerates eligible files without reading their content. Used for
// staleness checks and refresh planning, where metadata is enough.
func (w *Walker) Scan(ctx context.Context, root string, visit func(FileMeta) error) (*WalkReport, error) {
	report := &WalkReport{}
	err := w.traverse(ctx, root, report, func(meta FileMeta) error {
		report.Visited++
		return visit(meta)
	})
	return report, err
}

// Walk enumerates eligible files with their full content. Binary files and
// unreadable files are recorded in the report and skipped; the walk
// continues.
func (w *Walker) Walk(ctx context.Context, root string, visit func(File) error) (*WalkReport, error) {
	report := &WalkReport{}
	err := w.traverse(ctx, root, report, func(meta FileMeta) error {
		content, skip := w.load(meta)
		if skip != nil {
			w.logger.Debug("skipping file", "path", skip.Path, "reason", skip.Reason, "err", skip.Err)
			report.Skipped = append(report.Skipped, *skip)
			return nil
		}
		report.Visited++
		return visit(File{FileMeta: meta, Content: content})
	})
	return report, err
}

func (w *Walker) traverse(ctx context.Context, root string, report *WalkReport, visit func(FileMeta) error) error {
	if root == "" {
		return ErrRootRequired
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, absRoot)
	}

	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			report.Skipped = append(report.Skipped, SkippedFile{
				Path:   path,
				Reason: SkipUnreadable,
				Err:    walkErr,
			})
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if _, excluded := w.excludeDirs[d.Name()]; excluded {
				return filepath.SkipDir
			}
			if w.matchesGlob(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks and other irregular entries are never followed.
		if !d.Type().IsRegular() {
			return nil
		}
		if w.matchesGlob(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			report.Skipped = append(report.Skipped, SkippedFile{
				Path:   rel,
				Reason: SkipUnreadable,
				Err:    err,
			})
			return nil
		}
		if info.Size() > w.maxFileSize {
			report.Skipped = append(report.Skipped, SkippedFile{
				Path:   rel,
				Reason: SkipTooLarge,
			})
			return nil
		}

		return visit(FileMeta{
			Path:    rel,
			AbsPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	})
}

// load reads a file's content and applies the binary-detection policy
// before anything tokenizes it.
func (w *Walker) load(meta FileMeta) ([]byte, *SkippedFile) {
	content, err := os.ReadFile(meta.AbsPath)
	if err != nil {
		return nil, &SkippedFile{Path: meta.Path, Reason: SkipUnreadable, Err: err}
	}
	if isBinary(content, w.sniffLen) {
		return nil, &SkippedFile{Path: meta.Path, Reason: SkipBinary}
	}
	return content, nil
}

func (w *Walker) matchesGlob(rel string) bool {
	for _, g := range w.excludeGlobs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// isBinary reports whether content looks binary: a NUL byte within the sniff
// window.
func isBinary(content []byte, sniffLen int) bool {
	window := content
	if len(window) > sniffLen {
		window = window[:sniffLen]
	}
	return bytes.IndexByte(window, 0) >= 0
}
