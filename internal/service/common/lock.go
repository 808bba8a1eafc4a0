//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/expo-up/internal/config"
	"github.com/oshokin/expo-up/internal/logger"
)

// LockFilename marks a release in progress inside the project root.
const LockFilename = ".expo-up.lock"

// ErrReleaseInProgress is returned when another live process holds the release lock.
var ErrReleaseInProgress = errors.New("another release is running in this project")

// Lock is a held release lock.
type Lock struct {
	// path is the lock file location.
	path string
}

// AcquireLock creates the release lock in dir. A lock left behind by a
// process that is no longer running is taken over.
func AcquireLock(ctx context.Context, dir string) (*Lock, error) {
	path := filepath.Join(dir, LockFilename)

	if ownerPID, held := lockOwner(path); held {
		if ownerPID != os.Getpid() && isProcessRunning(ctx, ownerPID) {
			return nil, fmt.Errorf("%w (pid %d)", ErrReleaseInProgress, ownerPID)
		}

		logger.InfoKV(ctx, "Removing stale release lock", "path", path, "pid", ownerPID)

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
	}

	//nolint:gosec // The path is built from the project root.
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, config.DefaultFilePermissions)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, ErrReleaseInProgress
		}

		return nil, fmt.Errorf("create lock: %w", err)
	}

	if _, err = file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = file.Close()
		_ = os.Remove(path)

		return nil, fmt.Errorf("write lock: %w", err)
	}

	if err = file.Close(); err != nil {
		_ = os.Remove(path)

		return nil, fmt.Errorf("close lock: %w", err)
	}

	return &Lock{path: path}, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}

	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

// lockOwner reports whether a lock file exists and the PID written in it.
// An unreadable PID is returned as 0.
func lockOwner(path string) (int, bool) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, !errors.Is(err, fs.ErrNotExist)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, true
	}

	return pid, true
}

// isProcessRunning looks pid up in the process table.
// When the table cannot be read the process is assumed alive.
func isProcessRunning(ctx context.Context, pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		logger.WarnKV(ctx, "Unable to inspect lock owner", "pid", pid, "error", err)
		return true
	}

	return process != nil
}
