package core

import (
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// TrigramLen is the n-gram width used throughout the index.
const TrigramLen = 3

// FileID is a dense identifier assigned to files in discovery order during a
// single index build. FileIDs are stable only within one snapshot and are
// never reused across rebuilds.
type FileID uint32

// Trigram is a fixed-width index key derived from three consecutive bytes of
// file content.
type Trigram [TrigramLen]byte

// TrigramAt returns the trigram starting at position i. The caller must
// ensure i+3 <= len(data).
func TrigramAt(data []byte, i int) Trigram {
	return Trigram{data[i], data[i+1], data[i+2]}
}

// String renders the trigram with non-printable bytes escaped, for logs.
func (t Trigram) String() string {
	return fmt.Sprintf("%q", string(t[:]))
}

// FileRecord is the per-file metadata captured during indexing. Records are
// immutable once the snapshot is sealed; a rebuild supersedes them.
type FileRecord struct {
	ID          FileID
	Path        string // root-relative, slash-separated
	Size        int64
	ModTime     time.Time
	Fingerprint uint64   // content hash, see FingerprintContent
	LineOffsets []uint32 // byte offsets of line starts; optional
}

// Line returns the 1-based line number containing the given byte offset,
// using the record's line-offset table. Returns 0 if the table is absent.
func (r *FileRecord) Line(offset int64) int {
	if len(r.LineOffsets) == 0 {
		return 0
	}
	// First line start greater than offset; the line is the one before it.
	n := sort.Search(len(r.LineOffsets), func(i int) bool {
		return int64(r.LineOffsets[i]) > offset
	})
	return n
}

// FingerprintContent hashes file content into a 64-bit fingerprint using
// BLAKE2b. Identical content always produces an identical fingerprint.
func FingerprintContent(data []byte) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(data)
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// PostingList is the ordered, deduplicated set of files containing a given
// trigram. FileIDs are strictly increasing, which permits linear-time
// intersection.
type PostingList []FileID

// Contains reports whether id appears in the list, by binary search.
func (p PostingList) Contains(id FileID) bool {
	n := sort.Search(len(p), func(i int) bool { return p[i] >= id })
	return n < len(p) && p[n] == id
}

// Snapshot is a sealed, immutable index over one directory tree. It is built
// wholly by one builder run, persisted as a unit, and safe for concurrent
// read-only use. Queries never mutate it.
type Snapshot struct {
	Root     string // absolute path of the indexed tree
	BuiltAt  time.Time
	FoldCase bool // content and patterns are ASCII-lowercased
	Files    []FileRecord
	Postings map[Trigram]PostingList
}

// FileCount returns the number of indexed files.
func (s *Snapshot) FileCount() int {
	return len(s.Files)
}

// TrigramCount returns the number of distinct trigrams in the index.
func (s *Snapshot) TrigramCount() int {
	return len(s.Postings)
}

// Record returns the file record for id, or false if id is out of range.
func (s *Snapshot) Record(id FileID) (*FileRecord, bool) {
	if int(id) >= len(s.Files) {
		return nil, false
	}
	return &s.Files[id], true
}

// AllFiles returns every FileID in the snapshot in increasing order. Used as
// the candidate set when no trigram constraint exists.
func (s *Snapshot) AllFiles() PostingList {
	ids := make(PostingList, len(s.Files))
	for i := range s.Files {
		ids[i] = FileID(i)
	}
	return ids
}

// Match is a single verified hit, produced transiently per query.
type Match struct {
	File   FileID
	Path   string
	Line   int   // 1-based
	Offset int64 // byte offset of the match start within the file
	Text   string
}
