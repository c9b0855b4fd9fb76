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


// Package index builds sealed trigram snapshots from directory trees.
//
// The package has three cooperating parts:
//
//   - Trigrams / UniqueTrigrams: pure tokenization of byte content into
//     overlapping 3-byte n-grams, exposed as a lazy, restartable iterator.
//   - Walker: deterministic lexical enumeration of regular files under a
//     root, with directory-name and glob exclusions, a size cap, and binary
//     detection. Per-file failures are recorded and skipped, never fatal.
//   - Builder: parallel accumulation of trigram posting lists over a worker
//     pool, followed by a single-threaded finalize that sorts and seals the
//     snapshot. Builder.Refresh rebuilds incrementally, reusing the trigram
//     sets of files whose size and modification time are unchanged.
//
// A build either produces a complete sealed core.Snapshot or an error; there
// is no partially built state to observe. Skipped files are reported in the
// BuildReport alongside the snapshot.
package index
