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

import "errors"

var (
	// ErrNoFiles indicates a build found nothing to index. An empty index is
	// meaningless to persist; use WithAllowEmpty to override.
	ErrNoFiles = errors.New("no files to index")

	// ErrRootRequired indicates an empty root path.
	ErrRootRequired = errors.New("root directory required")

	// ErrNotDirectory indicates the root path is not a directory.
	ErrNotDirectory = errors.New("root is not a directory")

	// ErrInvalidPattern indicates an exclusion glob could not be compiled.
	ErrInvalidPattern = errors.New("invalid exclusion pattern")

	// ErrSnapshotRequired indicates a refresh was requested without a
	// previous snapshot.
	ErrSnapshotRequired = errors.New("previous snapshot required")
)

// SkipReason classifies why the walker passed over a file.
type SkipReason string

const (
	SkipBinary     SkipReason = "binary"
	SkipTooLarge   SkipReason = "too large"
	SkipUnreadable SkipReason = "unreadable"
)

// SkippedFile records a non-fatal per-file failure or policy exclusion.
type SkippedFile struct {
	Path   string
	Reason SkipReason
	Err    error // set when Reason is SkipUnreadable
}
