// Package lockfile guards the data directory against concurrent engine
// processes. SQLite tolerates multiple writers badly and the vector
// snapshot not at all, so one process owns the data dir at a time.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	lenserr "github.com/medialens/medialens/internal/errors"
)

// Lock is a held data-directory lock.
type Lock struct {
	flock *flock.Flock
}

// Acquire takes the lock at path without blocking. A held lock from
// another process is a fatal startup error, not something to wait out.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, lenserr.StoreError("create data directory", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, lenserr.StoreError("acquire data directory lock", err)
	}
	if !locked {
		return nil, lenserr.New(lenserr.ErrCodeStoreUnavailable,
			fmt.Sprintf("data directory is locked by another process (%s)", path), nil)
	}

	return &Lock{flock: fl}, nil
}

// Release drops the lock. Safe to call on a nil Lock.
func (l *Lock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	return l.flock.Unlock()
}
