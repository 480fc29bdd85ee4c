package download

import (
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the lock file created under the frame root.
const LockFileName = ".petframes.lock"

// Locker is an exclusive, non-blocking inter-process lock.
// *flock.Flock satisfies it.
type Locker interface {
	TryLock() (bool, error)
	Unlock() error
}

// NewFileLock returns the download lock for a frame root.
func NewFileLock(root string) *flock.Flock {
	return flock.New(filepath.Join(root, LockFileName))
}
