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
	"context"
	"log/slog"
	"runtime"

	"github.com/poiesic/trigrep/core"
)

// Searcher answers queries against one snapshot. It never mutates the
// snapshot and is safe for concurrent use.
type Searcher struct {
	snapshot *core.Snapshot
	source   ContentSource
	poolSize int
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithSource sets the content source used during verification.
// Default reads candidates from the indexed tree on disk.
func WithSource(source ContentSource) Option {
	return func(s *Searcher) error {
		if source != nil {
			s.source = source
		}
		return nil
	}
}

// WithPoolSize sets the verification worker count.
// Default is runtime.NumCPU().
func WithPoolSize(n int) Option {
	return func(s *Searcher) error {
		if n > 0 {
			s.poolSize = n
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a searcher over a sealed snapshot.
func NewSearcher(snapshot *core.Snapshot, opts ...Option) (*Searcher, error) {
	if snapshot == nil {
		return nil, ErrSnapshotRequired
	}

	s := &Searcher{
		snapshot: snapshot,
		source:   diskSource{root: snapshot.Root},
		poolSize: runtime.NumCPU(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// QueryOption adjusts a single query.
type QueryOption func(*querySettings)

type querySettings struct {
	regex   bool
	ranked  bool
	limit   int
	monitor SearchMonitor
}

// AsRegexp treats the pattern as a regular expression instead of a
// literal.
func AsRegexp() QueryOption {
	return func(q *querySettings) { q.regex = true }
}

// Ranked orders results by relevance instead of file order: files with
// more hits first.
func Ranked() QueryOption {
	return func(q *querySettings) { q.ranked = true }
}

// Limit caps the number of matches returned. Zero or negative means
// unlimited.
func Limit(n int) QueryOption {
	return func(q *querySettings) { q.limit = n }
}

// WithMonitor attaches a monitor to this query.
func WithMonitor(m SearchMonitor) QueryOption {
	return func(q *querySettings) {
		if m != nil {
			q.monitor = m
		}
	}
}

// QueryReport summarizes one query's planning and verification.
type QueryReport struct {
	Candidates int
	FullScan   bool
	Stale      []StaleCandidate
}

// Query plans and verifies one pattern. Matches come back in file order
// (or ranked, when requested); files that changed or vanished since the
// build are listed in the report, never returned as errors.
func (s *Searcher) Query(ctx context.Context, pattern string, opts ...QueryOption) ([]core.Match, *QueryReport, error) {
	settings := querySettings{monitor: &noopMonitor{}}
	for _, opt := range opts {
		opt(&settings)
	}

	var (
		p   *Pattern
		err error
	)
	if settings.regex {
		p, err = ParseRegexp(pattern, s.snapshot.FoldCase)
	} else {
		p, err = ParseLiteral(pattern, s.snapshot.FoldCase)
	}
	if err != nil {
		return nil, nil, err
	}

	settings.monitor.Start(pattern)

	plan := BuildPlan(s.snapshot, p)
	settings.monitor.AfterPlan(plan)
	s.logger.Debug("query planned",
		"pattern", pattern,
		"trigrams", len(plan.Trigrams),
		"candidates", len(plan.Candidates),
		"fullScan", plan.FullScan)

	matches, stale, err := verify(ctx, s.snapshot, plan, p, s.source, s.poolSize, settings.monitor)
	if err != nil {
		return nil, nil, err
	}
	if settings.ranked {
		rank(matches, p.Len())
	}
	if settings.limit > 0 && len(matches) > settings.limit {
		matches = matches[:settings.limit]
	}
	settings.monitor.Finish(matches)

	report := &QueryReport{
		Candidates: len(plan.Candidates),
		FullScan:   plan.FullScan,
		Stale:      stale,
	}
	return matches, report, nil
}
