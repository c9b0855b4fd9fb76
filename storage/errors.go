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


package storage

import "errors"

var (
	// ErrNotFound indicates no persisted index exists for the root.
	ErrNotFound = errors.New("index not found")

	// ErrCorrupt indicates the index file is truncated, damaged, or fails
	// invariant validation. It is never auto-repaired.
	ErrCorrupt = errors.New("index file corrupt")

	// ErrVersionMismatch indicates the index was written by an incompatible
	// format version.
	ErrVersionMismatch = errors.New("unsupported index format version")

	// ErrNilSnapshot indicates a nil snapshot was passed to Save.
	ErrNilSnapshot = errors.New("nil snapshot")
)
