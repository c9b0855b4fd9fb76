package storage

import (
	"context"
	"errors"

	"github.com/poiesic/trigrep/core"
	"github.com/poiesic/trigrep/index"
)

// errStopWalk aborts a staleness scan once the answer is known.
var errStopWalk = errors.New("stop walk")

// IsStale reports whether the tree under snapshot.Root has diverged from
// the snapshot: a file changed size or modification time, appeared since
// the build, or disappeared. The check only reads metadata and stops at
// the first divergence. It is advisory; no rebuild policy is enforced
// here.
//
// Pass the walker the snapshot was built with so exclusions line up; nil
// uses a default walker.
func IsStale(ctx context.Context, snapshot *core.Snapshot, w *index.Walker) (bool, error) {
	if snapshot == nil {
		return false, ErrNilSnapshot
	}
	if w == nil {
		var err error
		w, err = index.NewWalker()
		if err != nil {
			return false, err
		}
	}

	byPath := make(map[string]*core.FileRecord, len(snapshot.Files))
	for i := range snapshot.Files {
		byPath[snapshot.Files[i].Path] = &snapshot.Files[i]
	}

	stale := false
	seen := 0
	_, err := w.Scan(ctx, snapshot.Root, func(meta index.FileMeta) error {
		if rec, ok := byPath[meta.Path]; ok {
			seen++
			if rec.Size != meta.Size || !rec.ModTime.Equal(meta.ModTime) {
				stale = true
				return errStopWalk
			}
			return nil
		}
		// Unknown path: new since the build. Files skipped at build time
		// (binary, oversized) keep their old modification times and do not
		// trip this.
		if meta.ModTime.After(snapshot.BuiltAt) {
			stale = true
			return errStopWalk
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		return false, err
	}
	if !stale && seen < snapshot.FileCount() {
		stale = true // something indexed no longer exists
	}
	return stale, nil
}
