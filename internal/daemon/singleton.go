package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/idlelock/idlelock/internal/domain"
)

// LockFileName is the singleton lock inside the data directory.
const LockFileName = "idlelock.lock"

// AcquireSingleton takes the process-wide instance lock in dir. It returns
// domain.ErrAlreadyRunning when another process holds it. Release the
// returned lock with Unlock.
func AcquireSingleton(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	fileLock := flock.New(filepath.Join(dir, LockFileName))
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return nil, domain.ErrAlreadyRunning
	}
	return fileLock, nil
}
