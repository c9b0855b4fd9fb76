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


package core

import "fmt"

// ValidateSnapshot validates a sealed Snapshot against its invariants.
//
// Invariants:
//   - Root must be non-empty
//   - every file record's ID equals its position in the file table
//   - every posting list is non-empty and strictly increasing
//   - every FileID in any posting list has a corresponding file record
//
// Loaders run this after deserialization so a corrupt index is rejected
// rather than silently misread.
func ValidateSnapshot(s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("%w: snapshot is nil", ErrInvalidSnapshot)
	}

	if s.Root == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, ErrEmptyRoot)
	}

	for i := range s.Files {
		if s.Files[i].ID != FileID(i) {
			return fmt.Errorf("%w: %w: record %d has id %d",
				ErrInvalidSnapshot, ErrRecordIDMismatch, i, s.Files[i].ID)
		}
	}

	for t, list := range s.Postings {
		if len(list) == 0 {
			return fmt.Errorf("%w: %w: trigram %s",
				ErrInvalidSnapshot, ErrEmptyPostingList, t)
		}
		for i, id := range list {
			if i > 0 && list[i-1] >= id {
				return fmt.Errorf("%w: %w: trigram %s",
					ErrInvalidSnapshot, ErrUnorderedPostingList, t)
			}
			if int(id) >= len(s.Files) {
				return fmt.Errorf("%w: %w: trigram %s references %d",
					ErrInvalidSnapshot, ErrUnknownFileID, t, id)
			}
		}
	}

	return nil
}
