package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSnapshot() *Snapshot {
	return &Snapshot{
		Root:    "/tmp/project",
		BuiltAt: time.Now(),
		Files: []FileRecord{
			{ID: 0, Path: "a.txt"},
			{ID: 1, Path: "b.txt"},
		},
		Postings: map[Trigram]PostingList{
			{'w', 'o', 'r'}: {0, 1},
			{'h', 'e', 'l'}: {0},
		},
	}
}

func TestValidateSnapshot(t *testing.T) {
	require.NoError(t, ValidateSnapshot(validSnapshot()))
}

func TestValidateSnapshot_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Snapshot)
		wantErr error
	}{
		{
			name:    "empty root",
			mutate:  func(s *Snapshot) { s.Root = "" },
			wantErr: ErrEmptyRoot,
		},
		{
			name:    "record id mismatch",
			mutate:  func(s *Snapshot) { s.Files[1].ID = 5 },
			wantErr: ErrRecordIDMismatch,
		},
		{
			name: "empty posting list",
			mutate: func(s *Snapshot) {
				s.Postings[Trigram{'x', 'y', 'z'}] = PostingList{}
			},
			wantErr: ErrEmptyPostingList,
		},
		{
			name: "unordered posting list",
			mutate: func(s *Snapshot) {
				s.Postings[Trigram{'w', 'o', 'r'}] = PostingList{1, 0}
			},
			wantErr: ErrUnorderedPostingList,
		},
		{
			name: "duplicate posting entry",
			mutate: func(s *Snapshot) {
				s.Postings[Trigram{'w', 'o', 'r'}] = PostingList{0, 0}
			},
			wantErr: ErrUnorderedPostingList,
		},
		{
			name: "unknown file id",
			mutate: func(s *Snapshot) {
				s.Postings[Trigram{'w', 'o', 'r'}] = PostingList{0, 9}
			},
			wantErr: ErrUnknownFileID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSnapshot()
			tt.mutate(s)

			err := ValidateSnapshot(s)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.ErrorIs(t, ValidateSnapshot(nil), ErrInvalidSnapshot)
}
