// Package cache provides an optional BadgerDB-backed content cache. The
// builder can mirror every indexed file's bytes into it, keyed by content
// fingerprint, so later verification can run against the exact content the
// index was built from even after the working tree moved on.
package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/poiesic/trigrep/core"
)

// ErrNotCached is returned when no content is stored for a fingerprint.
var ErrNotCached = errors.New("content not cached")

// contentPrefix namespaces content entries; keys are prefix + 8-byte
// big-endian fingerprint.
const contentPrefix = "con:"

// Cache stores file contents keyed by fingerprint. Because the key is the
// content hash rather than a file ID, entries stay valid across rebuilds
// that reassign IDs, and identical files share one entry.
type Cache struct {
	db     *badger.DB
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens (creating if needed) a content cache at dir.
func Open(dir string, opts ...Option) (*Cache, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return open(badger.DefaultOptions(dir), opts...)
}

// OpenInMemory opens a cache that lives only for the process. Used in
// tests and for one-shot runs that want verification against build-time
// content without a cache directory.
func OpenInMemory(opts ...Option) (*Cache, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), opts...)
}

func open(badgerOpts badger.Options, opts ...Option) (*Cache, error) {
	c := &Cache{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}

	badgerOpts.Logger = &badgerLoggerAdapter{logger: c.logger}
	badgerOpts.Compression = options.None

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}
	c.db = db
	return c, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func contentKey(fingerprint uint64) []byte {
	buf := make([]byte, len(contentPrefix)+8)
	offset := copy(buf, contentPrefix)
	binary.BigEndian.PutUint64(buf[offset:], fingerprint)
	return buf
}

// Put stores content under its fingerprint. Satisfies index.ContentSink.
func (c *Cache) Put(fingerprint uint64, content []byte) error {
	return c.db.Update(func(tx *badger.Txn) error {
		return tx.Set(contentKey(fingerprint), content)
	})
}

// Content returns the cached bytes for a file record's fingerprint, or
// ErrNotCached.
func (c *Cache) Content(rec *core.FileRecord) ([]byte, error) {
	var content []byte
	err := c.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(contentKey(rec.Fingerprint))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrNotCached, rec.Path)
			}
			return err
		}
		content, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

// Prune drops every entry whose fingerprint no longer appears in the
// snapshot, and returns how many were removed.
func (c *Cache) Prune(s *core.Snapshot) (int, error) {
	if s == nil {
		return 0, core.ErrInvalidSnapshot
	}
	live := make(map[uint64]struct{}, len(s.Files))
	for i := range s.Files {
		live[s.Files[i].Fingerprint] = struct{}{}
	}

	var dead [][]byte
	err := c.db.View(func(tx *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte(contentPrefix)
		iterOpts.PrefetchValues = false
		iter := tx.NewIterator(iterOpts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().KeyCopy(nil)
			fingerprint := binary.BigEndian.Uint64(key[len(contentPrefix):])
			if _, ok := live[fingerprint]; !ok {
				dead = append(dead, key)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, key := range dead {
		err := c.db.Update(func(tx *badger.Txn) error {
			return tx.Delete(key)
		})
		if err != nil {
			return 0, err
		}
	}
	if len(dead) > 0 {
		c.logger.Debug("content cache pruned", "removed", len(dead))
	}
	return len(dead), nil
}
