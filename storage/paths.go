package storage

import (
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/go-crypt/x/blake2b"
)

const (
	// defaultDirName is the hidden per-user directory holding all indexes.
	defaultDirName = ".trigrep"

	// indexFileExt is the extension of persisted index files.
	indexFileExt = ".tgx"
)

// DefaultDir returns the default store directory under the user's home.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, defaultDirName), nil
}

// indexFileName derives the store filename for an absolute root path by
// hashing it, so multiple roots keep independent indexes without collision.
func indexFileName(absRoot string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(absRoot))
	return hex.EncodeToString(h.Sum(nil)) + indexFileExt
}
