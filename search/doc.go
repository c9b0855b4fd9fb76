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

// Package search answers queries against a sealed index snapshot.
//
// A query runs in two stages:
//   - Planning: the pattern's trigrams are intersected against the posting
//     table, yielding a candidate file set. The index may over-approximate
//     (a candidate need not contain the pattern) but never misses a file
//     that does.
//   - Verification: each candidate's current content is read and scanned
//     for real occurrences. Files that changed or disappeared since the
//     build are reported as stale candidates, never as failures.
//
// Patterns shorter than three bytes carry no trigram constraint and fall
// back to verifying every indexed file.
package search
