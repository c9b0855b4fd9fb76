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


// Package storage persists sealed index snapshots as single versioned files.
//
// # File format
//
// A persisted index starts with a fixed 12-byte header: 4 magic bytes
// ("TGRP"), the format version as a little-endian uint32, and a CRC-32
// checksum of the payload. The version is always readable first, so a
// loader can cleanly reject an incompatible index instead of misreading it.
// The payload is a MUS-encoded stream: root path, build timestamp, fold
// flag, the file-record table, and the sorted trigram table with
// delta-encoded posting lists.
//
// # Atomicity
//
// Save writes to a temporary file, syncs, and renames into place, so a
// reader never observes a partially written index and an interrupted build
// leaves the previous index untouched.
//
// # Errors
//
// Load fails with one of three distinct sentinels, classified with
// errors.Is: ErrNotFound (no index), ErrCorrupt (truncation, bad magic or
// checksum, invariant violation), ErrVersionMismatch (readable but
// unsupported version). None are auto-repaired; the caller decides whether
// to rebuild.
//
// # Store location
//
// Indexes live in a hidden directory under the user's home directory, one
// file per indexed root. The filename is derived by hashing the absolute
// root path, so distinct roots never collide.
package storage
