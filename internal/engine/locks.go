package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
)

// lockRetry is how often a contended artifact lock is retried.
const lockRetry = 50 * time.Millisecond

// artifactLocks hands out exclusive per-artifact file locks. Lock files live
// in one directory and are named after the artifact's absolute path, so two
// builds sharing a working directory contend on the same files.
type artifactLocks struct {
	dir string
}

// acquire locks every path in sorted order and returns the release func.
// Sorted acquisition keeps two nodes from waiting on each other.
func (l *artifactLocks) acquire(ctx context.Context, paths []string) (func(), error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	var held []*flock.Flock
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			_ = held[i].Unlock()
		}
	}
	for _, p := range sorted {
		lock := flock.New(l.lockPath(p))
		locked, err := lock.TryLockContext(ctx, lockRetry)
		if err != nil {
			release()
			return nil, fmt.Errorf("lock %s: %w", p, err)
		}
		if !locked {
			release()
			return nil, fmt.Errorf("lock %s: held elsewhere", p)
		}
		held = append(held, lock)
	}
	return release, nil
}

func (l *artifactLocks) lockPath(artifact string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(artifact)))
	return filepath.Join(l.dir, hex.EncodeToString(sum[:8])+".lock")
}
