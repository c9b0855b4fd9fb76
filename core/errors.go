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

import "errors"

// Snapshot invariant errors
var (
	// ErrInvalidSnapshot indicates a Snapshot failed invariant validation.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrEmptyRoot indicates the snapshot has no root path.
	ErrEmptyRoot = errors.New("root path cannot be empty")

	// ErrRecordIDMismatch indicates a file record's ID does not match its
	// position in the file table.
	ErrRecordIDMismatch = errors.New("file record id does not match table position")

	// ErrEmptyPostingList indicates a trigram is mapped to an empty posting
	// list; empty lists must be pruned.
	ErrEmptyPostingList = errors.New("empty posting list")

	// ErrUnorderedPostingList indicates a posting list's FileIDs are not
	// strictly increasing.
	ErrUnorderedPostingList = errors.New("posting list not strictly increasing")

	// ErrUnknownFileID indicates a posting list references a FileID with no
	// corresponding file record.
	ErrUnknownFileID = errors.New("posting list references unknown file id")
)
