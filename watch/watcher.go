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

// Package watch surfaces file changes under an indexed root so callers can
// trigger a refresh when the tree drifts from its snapshot. It wraps
// fsnotify with recursive directory registration, exclusion filtering and
// per-path debouncing; rapid save bursts collapse into one event.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// DefaultDebounce is the quiet interval a path must hold before its event
// is emitted.
const DefaultDebounce = 250 * time.Millisecond

var (
	// ErrRootRequired is returned when no root directory is given.
	ErrRootRequired = errors.New("watch root required")

	// ErrNotDirectory is returned when the root is not a directory.
	ErrNotDirectory = errors.New("watch root is not a directory")

	// ErrInvalidPattern is returned when an exclusion glob fails to compile.
	ErrInvalidPattern = errors.New("invalid exclude pattern")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Op classifies a change event.
type Op uint8

const (
	OpCreate Op = iota
	OpModify
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpRemove:
		return "remove"
	}
	return "unknown"
}

// Event is one debounced file change under the watched root.
type Event struct {
	Path string // absolute
	Op   Op
	Time time.Time
}

// defaultExcludedDirs mirrors the directories the indexer skips, so the
// watcher stays quiet about trees that never enter the index.
var defaultExcludedDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	".bzr":         {},
	"node_modules": {},
	"vendor":       {},
	".trigrep":     {},
}

// Watcher monitors one directory tree recursively. Create it, Start it
// once, then drain the returned channel until it closes.
type Watcher struct {
	root         string
	debounce     time.Duration
	excludedDirs map[string]struct{}
	excludeGlobs []glob.Glob
	logger       *slog.Logger

	fw      *fsnotify.Watcher
	events  chan Event
	started bool

	mu       sync.Mutex
	pending  map[string]*pendingEvent
	stopped  bool
	stopOnce sync.Once
}

type pendingEvent struct {
	event Event
	timer *time.Timer
}

// Option configures a Watcher.
type Option func(*Watcher) error

// WithDebounce sets the debounce interval. Default is DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) error {
		if d > 0 {
			w.debounce = d
		}
		return nil
	}
}

// WithExcludeDirs adds directory names to skip, on top of the defaults.
func WithExcludeDirs(names ...string) Option {
	return func(w *Watcher) error {
		for _, name := range names {
			w.excludedDirs[name] = struct{}{}
		}
		return nil
	}
}

// WithExcludeGlobs adds glob patterns matched against root-relative paths.
func WithExcludeGlobs(patterns ...string) Option {
	return func(w *Watcher) error {
		for _, pattern := range patterns {
			g, err := glob.Compile(pattern, '/')
			if err != nil {
				return errors.Join(ErrInvalidPattern, err)
			}
			w.excludeGlobs = append(w.excludeGlobs, g)
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// NewWatcher creates a watcher for the tree rooted at root.
func NewWatcher(root string, opts ...Option) (*Watcher, error) {
	if root == "" {
		return nil, ErrRootRequired
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrNotDirectory
	}

	w := &Watcher{
		root:         abs,
		debounce:     DefaultDebounce,
		excludedDirs: make(map[string]struct{}, len(defaultExcludedDirs)),
		logger:       slog.Default(),
		pending:      make(map[string]*pendingEvent),
	}
	for name := range defaultExcludedDirs {
		w.excludedDirs[name] = struct{}{}
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Start registers the tree with fsnotify and begins emitting events. The
// returned channel closes when ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) (<-chan Event, error) {
	if w.started {
		return nil, ErrAlreadyStarted
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.fw = fw
	w.events = make(chan Event, 64)
	w.started = true

	if err := w.addRecursive(w.root); err != nil {
		fw.Close()
		return nil, err
	}

	go w.run(ctx)
	return w.events, nil
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		for _, p := range w.pending {
			p.timer.Stop()
		}
		w.pending = make(map[string]*pendingEvent)
		w.mu.Unlock()

		if w.fw != nil {
			w.fw.Close()
		}
	})
	return nil
}

// addRecursive registers dir and every non-excluded subdirectory.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A directory vanished mid-walk; skip it.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.excluded(path, d.Name()) {
			return filepath.SkipDir
		}
		return w.fw.Add(path)
	})
}

// excluded reports whether a path is outside the watcher's interest.
func (w *Watcher) excluded(path, name string) bool {
	if _, ok := w.excludedDirs[name]; ok {
		return true
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, g := range w.excludeGlobs {
		if g.Match(rel) || g.Match(name) {
			return true
		}
	}
	return false
}

func (w *Watcher) run(ctx context.Context) {
	defer w.finish()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if w.excluded(event.Name, filepath.Base(event.Name)) {
		return
	}

	// New directories must be registered before anything inside them
	// changes, or those changes go unseen.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "err", err)
			}
		}
	}

	w.schedule(Event{
		Path: event.Name,
		Op:   mapOp(event.Op),
		Time: time.Now(),
	})
}

func mapOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpRemove
	default:
		return OpModify
	}
}

// schedule arms (or re-arms) the debounce timer for a path.
func (w *Watcher) schedule(event Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	if existing, ok := w.pending[event.Path]; ok {
		existing.timer.Stop()
		// A create followed by writes is still a create; anything else
		// takes the newest op.
		if existing.event.Op == OpCreate && event.Op == OpModify {
			event.Op = OpCreate
		}
	}
	w.pending[event.Path] = &pendingEvent{
		event: event,
		timer: time.AfterFunc(w.debounce, func() {
			w.emit(event.Path)
		}),
	}
}

func (w *Watcher) emit(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	p, ok := w.pending[path]
	if !ok {
		return
	}
	delete(w.pending, path)

	select {
	case w.events <- p.event:
	default:
		w.logger.Debug("event dropped, channel full", "path", path)
	}
}

// finish closes the event channel after the run loop exits.
func (w *Watcher) finish() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.stopped = true
		for _, p := range w.pending {
			p.timer.Stop()
		}
		w.pending = make(map[string]*pendingEvent)
	}
	close(w.events)
}
