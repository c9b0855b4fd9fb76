package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/trigrep/core"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_PutAndContent(t *testing.T) {
	c := openTestCache(t)

	content := []byte("hello world")
	fingerprint := core.FingerprintContent(content)
	require.NoError(t, c.Put(fingerprint, content))

	rec := &core.FileRecord{Path: "a.txt", Fingerprint: fingerprint}
	got, err := c.Content(rec)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestCache_ContentMissing(t *testing.T) {
	c := openTestCache(t)

	rec := &core.FileRecord{Path: "missing.txt", Fingerprint: 42}
	_, err := c.Content(rec)
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestCache_PutOverwriteSameFingerprint(t *testing.T) {
	c := openTestCache(t)

	content := []byte("goodbye world")
	fingerprint := core.FingerprintContent(content)
	require.NoError(t, c.Put(fingerprint, content))
	require.NoError(t, c.Put(fingerprint, content))

	got, err := c.Content(&core.FileRecord{Fingerprint: fingerprint})
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestCache_Prune(t *testing.T) {
	c := openTestCache(t)

	kept := []byte("hello world")
	dropped := []byte("stale content")
	keptFP := core.FingerprintContent(kept)
	droppedFP := core.FingerprintContent(dropped)
	require.NoError(t, c.Put(keptFP, kept))
	require.NoError(t, c.Put(droppedFP, dropped))

	snap := &core.Snapshot{
		Root:    "/tmp/project",
		BuiltAt: time.Unix(0, 1724500000123456789),
		Files: []core.FileRecord{
			{ID: 0, Path: "a.txt", Size: int64(len(kept)), Fingerprint: keptFP, LineOffsets: []uint32{0}},
		},
		Postings: map[core.Trigram]core.PostingList{},
	}

	removed, err := c.Prune(snap)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = c.Content(&core.FileRecord{Fingerprint: keptFP})
	assert.NoError(t, err)
	_, err = c.Content(&core.FileRecord{Fingerprint: droppedFP})
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestCache_PruneNilSnapshot(t *testing.T) {
	c := openTestCache(t)
	_, err := c.Prune(nil)
	assert.Error(t, err)
}
