package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/trigrep/core"
	"github.com/poiesic/trigrep/index"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func buildTree(t *testing.T, files map[string]string, opts ...index.Option) (string, *core.Snapshot) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		writeFile(t, root, rel, content)
	}
	b, err := index.NewBuilder(opts...)
	require.NoError(t, err)
	snap, _, err := b.Build(context.Background(), root)
	require.NoError(t, err)
	return root, snap
}

func TestSearcher_RequiresSnapshot(t *testing.T) {
	_, err := NewSearcher(nil)
	assert.ErrorIs(t, err, ErrSnapshotRequired)
}

func TestQuery_LiteralAcrossFiles(t *testing.T) {
	_, snap := buildTree(t, map[string]string{
		"a.txt": "hello world",
		"b.txt": "goodbye world",
	})
	s, err := NewSearcher(snap)
	require.NoError(t, err)

	matches, report, err := s.Query(context.Background(), "world")
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, "a.txt", matches[0].Path)
	assert.Equal(t, 1, matches[0].Line)
	assert.Equal(t, int64(6), matches[0].Offset)
	assert.Equal(t, "hello world", matches[0].Text)
	assert.Equal(t, "b.txt", matches[1].Path)
	assert.Equal(t, 1, matches[1].Line)
	assert.Equal(t, int64(8), matches[1].Offset)

	assert.Equal(t, 2, report.Candidates)
	assert.False(t, report.FullScan)
	assert.Empty(t, report.Stale)
}

func TestQuery_LiteralSingleFile(t *testing.T) {
	_, snap := buildTree(t, map[string]string{
		"a.txt": "hello world",
		"b.txt": "goodbye world",
	})
	s, err := NewSearcher(snap)
	require.NoError(t, err)

	matches, report, err := s.Query(context.Background(), "hello")
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "a.txt", matches[0].Path)
	assert.Equal(t, 1, report.Candidates)
}

func TestQuery_NoMatch(t *testing.T) {
	_, snap := buildTree(t, map[string]string{
		"a.txt": "hello world",
		"b.txt": "goodbye world",
	})
	s, err := NewSearcher(snap)
	require.NoError(t, err)

	matches, report, err := s.Query(context.Background(), "xyzzy")
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Equal(t, 0, report.Candidates)
}

func TestQuery_EmptyPattern(t *testing.T) {
	_, snap := buildTree(t, map[string]string{"a.txt": "hello world"})
	s, err := NewSearcher(snap)
	require.NoError(t, err)

	_, _, err = s.Query(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyPattern)
}

func TestQuery_ShortPatternFullScan(t *testing.T) {
	_, snap := buildTree(t, map[string]string{
		"a.txt": "hello world",
		"b.txt": "goodbye world",
		"c.txt": "nothing here",
	})
	s, err := NewSearcher(snap)
	require.NoError(t, err)

	matches, report, err := s.Query(context.Background(), "wo")
	require.NoError(t, err)

	assert.True(t, report.FullScan)
	assert.Equal(t, 3, report.Candidates)
	require.Len(t, matches, 2)
	assert.Equal(t, "a.txt", matches[0].Path)
	assert.Equal(t, "b.txt", matches[1].Path)
}

func TestQuery_MultilineOffsets(t *testing.T) {
	_, snap := buildTree(t, map[string]string{
		"code.go": "package main\n\nfunc main() {\n\tprintln(\"needle\")\n}\n",
	})
	s, err := NewSearcher(snap)
	require.NoError(t, err)

	matches, _, err := s.Query(context.Background(), "needle")
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, 4, matches[0].Line)
	assert.Equal(t, "\tprintln(\"needle\")", matches[0].Text)
}

func TestQuery_DeletedFileReportedStale(t *testing.T) {
	root, snap := buildTree(t, map[string]string{
		"a.txt": "hello world",
		"b.txt": "goodbye world",
	})
	require.NoError(t, os.Remove(filepath.Join(root, "a.txt")))

	s, err := NewSearcher(snap)
	require.NoError(t, err)

	matches, report, err := s.Query(context.Background(), "world")
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "b.txt", matches[0].Path)
	require.Len(t, report.Stale, 1)
	assert.Equal(t, "a.txt", report.Stale[0].Path)
	assert.Equal(t, StaleMissing, report.Stale[0].Reason)
}

func TestQuery_ChangedFileSearchedAndFlagged(t *testing.T) {
	root, snap := buildTree(t, map[string]string{
		"a.txt": "hello world",
	})
	writeFile(t, root, "a.txt", "hello world, again")

	s, err := NewSearcher(snap)
	require.NoError(t, err)

	matches, report, err := s.Query(context.Background(), "world")
	require.NoError(t, err)

	// Current content is searched even though it diverged.
	require.Len(t, matches, 1)
	assert.Equal(t, "hello world, again", matches[0].Text)
	require.Len(t, report.Stale, 1)
	assert.Equal(t, StaleChanged, report.Stale[0].Reason)
}

func TestQuery_Regexp(t *testing.T) {
	_, snap := buildTree(t, map[string]string{
		"a.txt": "error: code 404\nerror: code 500\n",
		"b.txt": "all fine here\n",
	})
	s, err := NewSearcher(snap)
	require.NoError(t, err)

	matches, report, err := s.Query(context.Background(), `code \d+`, AsRegexp())
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, 1, matches[0].Line)
	assert.Equal(t, 2, matches[1].Line)
	assert.False(t, report.FullScan)
	assert.Equal(t, 1, report.Candidates)

	_, _, err = s.Query(context.Background(), `co(de`, AsRegexp())
	assert.ErrorIs(t, err, ErrBadPattern)
}

func TestQuery_FoldCase(t *testing.T) {
	_, snap := buildTree(t, map[string]string{
		"a.txt": "Hello World",
	}, index.WithFoldCase())
	s, err := NewSearcher(snap)
	require.NoError(t, err)

	matches, _, err := s.Query(context.Background(), "hello WORLD")
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, int64(0), matches[0].Offset)
	assert.Equal(t, "Hello World", matches[0].Text)
}

func TestQuery_Ranked(t *testing.T) {
	_, snap := buildTree(t, map[string]string{
		"sparse.txt": "needle\n",
		"dense.txt":  "needle needle\nneedle again\n",
	})
	s, err := NewSearcher(snap)
	require.NoError(t, err)

	matches, _, err := s.Query(context.Background(), "needle", Ranked())
	require.NoError(t, err)

	require.Len(t, matches, 4)
	assert.Equal(t, "dense.txt", matches[0].Path)
	assert.Equal(t, "dense.txt", matches[1].Path)
	assert.Equal(t, "dense.txt", matches[2].Path)
	assert.Equal(t, "sparse.txt", matches[3].Path)
	// Within a file, matches stay in offset order.
	assert.Less(t, matches[0].Offset, matches[1].Offset)
	assert.Less(t, matches[1].Offset, matches[2].Offset)
}

func TestQuery_Limit(t *testing.T) {
	_, snap := buildTree(t, map[string]string{
		"a.txt": "needle needle needle\n",
	})
	s, err := NewSearcher(snap)
	require.NoError(t, err)

	matches, _, err := s.Query(context.Background(), "needle", Limit(2))
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestQuery_WithSource(t *testing.T) {
	_, snap := buildTree(t, map[string]string{
		"a.txt": "hello world",
	})

	src := mapSource{}
	for i := range snap.Files {
		src[snap.Files[i].Fingerprint] = []byte("hello world")
	}

	s, err := NewSearcher(snap, WithSource(src))
	require.NoError(t, err)

	matches, report, err := s.Query(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Empty(t, report.Stale)
}

// mapSource serves content by fingerprint, standing in for a content cache.
type mapSource map[uint64][]byte

func (m mapSource) Content(rec *core.FileRecord) ([]byte, error) {
	content, ok := m[rec.Fingerprint]
	if !ok {
		return nil, fmt.Errorf("no content for %s: %w", rec.Path, os.ErrNotExist)
	}
	return content, nil
}

// recordingMonitor captures pipeline callbacks for assertions.
type recordingMonitor struct {
	started   string
	plan      *Plan
	verified  []string
	stale     []StaleCandidate
	finished  []core.Match
	finishSet bool
}

func (r *recordingMonitor) Start(pattern string)              { r.started = pattern }
func (r *recordingMonitor) AfterPlan(plan *Plan)              { r.plan = plan }
func (r *recordingMonitor) CandidateVerified(p string, _ int) { r.verified = append(r.verified, p) }
func (r *recordingMonitor) CandidateStale(c StaleCandidate)   { r.stale = append(r.stale, c) }
func (r *recordingMonitor) Finish(m []core.Match)             { r.finished = m; r.finishSet = true }

func TestQuery_MonitorCallbacks(t *testing.T) {
	_, snap := buildTree(t, map[string]string{
		"a.txt": "hello world",
		"b.txt": "goodbye world",
	})
	s, err := NewSearcher(snap)
	require.NoError(t, err)

	mon := &recordingMonitor{}
	matches, _, err := s.Query(context.Background(), "world", WithMonitor(mon))
	require.NoError(t, err)

	assert.Equal(t, "world", mon.started)
	require.NotNil(t, mon.plan)
	assert.Len(t, mon.plan.Candidates, 2)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, mon.verified)
	assert.Empty(t, mon.stale)
	assert.True(t, mon.finishSet)
	assert.Equal(t, matches, mon.finished)
}

func TestQuery_Deterministic(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 20; i++ {
		files[fmt.Sprintf("f%02d.txt", i)] = fmt.Sprintf("line with needle %d\n", i)
	}
	_, snap := buildTree(t, files)
	s, err := NewSearcher(snap)
	require.NoError(t, err)

	first, _, err := s.Query(context.Background(), "needle")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, _, err := s.Query(context.Background(), "needle")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestQuery_ContextCancelled(t *testing.T) {
	_, snap := buildTree(t, map[string]string{"a.txt": "hello world"})
	s, err := NewSearcher(snap)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = s.Query(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQuery_MatchesNaiveScan(t *testing.T) {
	files := map[string]string{
		"a.txt":     "the quick brown fox\njumps over the lazy dog\n",
		"b.txt":     "pack my box with five dozen liquor jugs\n",
		"sub/c.txt": "the five boxing wizards jump quickly\n",
	}
	_, snap := buildTree(t, files)
	s, err := NewSearcher(snap)
	require.NoError(t, err)

	for _, pattern := range []string{"the", "five", "jump", "quick", "box"} {
		matches, _, err := s.Query(context.Background(), pattern)
		require.NoError(t, err)

		p, err := ParseLiteral(pattern, false)
		require.NoError(t, err)
		var naive int
		for _, content := range files {
			naive += len(p.FindAll([]byte(content)))
		}
		assert.Len(t, matches, naive, "pattern %q", pattern)
	}
}
