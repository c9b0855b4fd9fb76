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

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/trigrep/core"
)

// Store reads and writes persisted indexes in one directory, one file per
// indexed root.
type Store struct {
	dir    string
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store) error

// WithDir sets the store directory. Default is DefaultDir().
func WithDir(dir string) StoreOption {
	return func(st *Store) error {
		if dir != "" {
			st.dir = dir
		}
		return nil
	}
}

// WithStoreLogger sets a custom logger.
// Default is slog.Default().
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(st *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		st.logger = logger
		return nil
	}
}

// NewStore creates a Store.
func NewStore(opts ...StoreOption) (*Store, error) {
	st := &Store{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.dir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		st.dir = dir
	}
	return st, nil
}

// Dir returns the store directory.
func (st *Store) Dir() string {
	return st.dir
}

// IndexPath returns the file a snapshot of root is (or would be) stored at.
func (st *Store) IndexPath(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	return filepath.Join(st.dir, indexFileName(abs)), nil
}

// Save atomically persists a snapshot: the encoded index is written to a
// temporary file, synced, and renamed over any previous index for the same
// root. A reader never observes a partial write.
func (st *Store) Save(s *core.Snapshot) error {
	if s == nil {
		return ErrNilSnapshot
	}
	if err := core.ValidateSnapshot(s); err != nil {
		return err
	}
	path, err := st.IndexPath(s.Root)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(st.dir, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	data := encodeSnapshot(s)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing index: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing index: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing index: %w", err)
	}

	st.logger.Debug("index saved",
		"path", path, "files", s.FileCount(), "trigrams", s.TrigramCount(), "bytes", len(data))
	return nil
}

// Load reads the persisted snapshot for root. Fails with ErrNotFound,
// ErrCorrupt or ErrVersionMismatch; the caller decides whether to rebuild.
func (st *Store) Load(root string) (*core.Snapshot, error) {
	path, err := st.IndexPath(root)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	return decodeSnapshot(data)
}

// Exists reports whether a persisted index exists for root.
func (st *Store) Exists(root string) (bool, error) {
	path, err := st.IndexPath(root)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Remove deletes the persisted index for root, if any.
func (st *Store) Remove(root string) error {
	path, err := st.IndexPath(root)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
