package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrigramAt(t *testing.T) {
	data := []byte("hello")
	assert.Equal(t, Trigram{'h', 'e', 'l'}, TrigramAt(data, 0))
	assert.Equal(t, Trigram{'l', 'l', 'o'}, TrigramAt(data, 2))
}

func TestFingerprintContent(t *testing.T) {
	a := FingerprintContent([]byte("hello world"))
	b := FingerprintContent([]byte("hello world"))
	c := FingerprintContent([]byte("hello worlD"))

	assert.Equal(t, a, b, "identical content must produce identical fingerprints")
	assert.NotEqual(t, a, c)
}

func TestPostingListContains(t *testing.T) {
	list := PostingList{0, 3, 7, 42}

	assert.True(t, list.Contains(0))
	assert.True(t, list.Contains(7))
	assert.True(t, list.Contains(42))
	assert.False(t, list.Contains(1))
	assert.False(t, list.Contains(100))
	assert.False(t, PostingList(nil).Contains(0))
}

func TestFileRecordLine(t *testing.T) {
	// Three lines starting at offsets 0, 6 and 12.
	rec := &FileRecord{LineOffsets: []uint32{0, 6, 12}}

	tests := []struct {
		name   string
		offset int64
		line   int
	}{
		{"start of first line", 0, 1},
		{"middle of first line", 5, 1},
		{"start of second line", 6, 2},
		{"middle of last line", 13, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.line, rec.Line(tt.offset))
		})
	}

	empty := &FileRecord{}
	assert.Equal(t, 0, empty.Line(0), "no table means no line information")
}

func TestSnapshotAccessors(t *testing.T) {
	s := &Snapshot{
		Root:    "/tmp/project",
		BuiltAt: time.Now(),
		Files: []FileRecord{
			{ID: 0, Path: "a.txt"},
			{ID: 1, Path: "b.txt"},
		},
		Postings: map[Trigram]PostingList{
			{'a', 'b', 'c'}: {0, 1},
		},
	}

	assert.Equal(t, 2, s.FileCount())
	assert.Equal(t, 1, s.TrigramCount())
	assert.Equal(t, PostingList{0, 1}, s.AllFiles())

	rec, ok := s.Record(1)
	require.True(t, ok)
	assert.Equal(t, "b.txt", rec.Path)

	_, ok = s.Record(2)
	assert.False(t, ok)
}

func TestFoldASCII(t *testing.T) {
	in := []byte("Hello, WORLD \xc3\x84!")
	out := FoldASCII(in)

	assert.Equal(t, []byte("hello, world \xc3\x84!"), out)
	assert.Len(t, out, len(in), "folding must preserve offsets")
	assert.Equal(t, byte('H'), in[0], "input must not be mutated")
}
