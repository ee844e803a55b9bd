package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/kicad-plugin-install/internal/logger"
)

const (
	// DefaultFilePermissions is applied to the marker file.
	DefaultFilePermissions = 0o644

	// dirPermissions is applied when the marker directory has to be created.
	dirPermissions = 0o755

	// acquireAttempts bounds stale-marker recovery.
	acquireAttempts = 2
)

var (
	// ErrLocked is returned when a live process holds the marker.
	ErrLocked = errors.New("another install is in progress")
	// errNotHeld is returned when releasing a marker this FileLock did not create.
	errNotHeld = errors.New("lock is not held")
)

// FileLock is an exclusive marker file containing the owner's PID.
type FileLock struct {
	// path is the marker location.
	path string
	// held reports whether this instance created the marker.
	held bool
	// mu protects held.
	mu sync.Mutex
}

// NewFileLock creates a lock backed by the marker at path.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		path: filepath.Clean(path),
	}
}

// Path returns the marker location.
func (l *FileLock) Path() string {
	return l.path
}

// Acquire creates the marker, replacing it when its owner no longer runs.
func (l *FileLock) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), dirPermissions); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	for range acquireAttempts {
		created, err := l.create()
		if err != nil {
			return err
		}

		if created {
			l.held = true

			logger.DebugKV(ctx, "Acquired install lock", "path", l.path)

			return nil
		}

		var stale bool

		stale, err = l.isStale()
		if err != nil {
			return err
		}

		if !stale {
			return fmt.Errorf("%w: %s", ErrLocked, l.path)
		}

		logger.WarnKV(ctx, "The install lock is stale, removing it", "path", l.path)

		if err = os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale lock: %w", err)
		}
	}

	return fmt.Errorf("%w: %s", ErrLocked, l.path)
}

// Release removes the marker created by Acquire.
func (l *FileLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return errNotHeld
	}

	l.held = false

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock: %w", err)
	}

	return nil
}

// create writes the marker exclusively. It returns false when it already exists.
func (l *FileLock) create() (bool, error) {
	marker, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, DefaultFilePermissions)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("create lock: %w", err)
	}

	_, err = marker.WriteString(strconv.Itoa(os.Getpid()))
	if closeErr := marker.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(l.path)

		return false, fmt.Errorf("write lock: %w", err)
	}

	return true, nil
}

// isStale reports whether the marker's owner is gone. Unreadable content counts as stale.
func (l *FileLock) isStale() (bool, error) {
	contents, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}

	if err != nil {
		return false, fmt.Errorf("read lock: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return true, nil
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("look up lock owner %d: %w", pid, err)
	}

	return process == nil, nil
}
