// Package output writes rendered traces to disk.
package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when the lock on the target could not be acquired
// before the context ended.
var ErrLocked = errors.New("output file is locked")

// lockRetry is how often a blocked writer retries the lock.
const lockRetry = 50 * time.Millisecond

// LockPath returns the advisory lock file used for path.
func LockPath(path string) string { return path + ".lock" }

// WriteFile replaces path with data. The write is atomic (temp file and
// rename) and runs under an advisory lock on LockPath(path), so concurrent
// writers of the same trace serialize instead of interleaving.
func WriteFile(ctx context.Context, path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	lock := flock.New(LockPath(path))
	ok, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %s: %w", ErrLocked, path, ctxErr)
		}
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, path)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".buildtrace-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
