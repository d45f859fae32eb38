package builder

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

	"github.com/adammcdonagh/sensu-asset-builder/internal/config"
	"github.com/adammcdonagh/sensu-asset-builder/internal/logger"
)

// LockFilename marks the build directory as in use by a running builder.
const LockFilename = ".sensu-asset-builder.lock"

// errBuildInProgress is returned when another live builder holds the lock.
var errBuildInProgress = errors.New("another build is running")

// processAlive reports whether a process with the PID exists.
type processAlive func(pid int) (bool, error)

// psAlive looks the PID up in the process table.
func psAlive(pid int) (bool, error) {
	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, err
	}

	return process != nil, nil
}

// buildLock is a PID file guarding the shared build directory.
type buildLock struct {
	// path is the lock file.
	path string
}

// acquireLock creates the lock file in dir. A lock left by a process that is
// no longer running is taken over.
func acquireLock(ctx context.Context, dir string, alive processAlive) (*buildLock, error) {
	if err := os.MkdirAll(dir, config.DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("create build directory: %w", err)
	}

	path := filepath.Join(dir, LockFilename)

	err := createLockFile(path)
	if errors.Is(err, fs.ErrExist) {
		if !isStale(ctx, path, alive) {
			return nil, fmt.Errorf("%s: %w", path, errBuildInProgress)
		}

		logger.WarnKV(ctx, "Removing stale build lock", "path", path)

		if err = os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}

		err = createLockFile(path)
	}

	if err != nil {
		return nil, fmt.Errorf("create build lock: %w", err)
	}

	return &buildLock{path: path}, nil
}

func createLockFile(path string) error {
	//nolint:gosec // G304: the lock lives in the configured build directory.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, config.DefaultFilePermissions)
	if err != nil {
		return err
	}

	if _, err = file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = file.Close()
		return err
	}

	return file.Close()
}

// isStale reports whether the lock holder is gone. Unreadable locks are stale.
func isStale(ctx context.Context, path string, alive processAlive) bool {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return !errors.Is(err, fs.ErrPermission)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return true
	}

	running, err := alive(pid)
	if err != nil {
		logger.WarnKV(ctx, "Unable to inspect lock holder", "pid", pid, "error", err)
		return false
	}

	return !running
}

// release removes the lock file.
func (l *buildLock) release() error {
	if l == nil {
		return nil
	}

	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release build lock: %w", err)
	}

	return nil
}
