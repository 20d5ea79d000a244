package update

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/stadtarchiv-lindau/lista-tools/internal/logging"
)

// FileLock is an exclusive lock file holding the owner's PID. A lock whose
// owner is no longer running is stale and gets replaced.
type FileLock struct {
	path      string
	pid       int
	held      bool
	pidExists func(pid int32) (bool, error)
	logger    *log.Logger
}

// NewFileLock creates a lock at path owned by the current process.
func NewFileLock(path string, logger *log.Logger) *FileLock {
	return &FileLock{
		path:      path,
		pid:       os.Getpid(),
		pidExists: process.PidExists,
		logger:    logging.OrDiscard(logger),
	}
}

// Path returns the lock file location.
func (l *FileLock) Path() string { return l.path }

// Acquire creates the lock file. It returns an error wrapping ErrLocked if
// a running process holds it.
func (l *FileLock) Acquire() error {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(l.pid) + "\n")
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(l.path)
				return fmt.Errorf("writing lock %s: %w", l.path, errors.Join(werr, cerr))
			}
			l.held = true
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("creating lock %s: %w", l.path, err)
		}

		owner, stale := l.inspect()
		if !stale {
			return fmt.Errorf("%w: process %d holds %s", ErrLocked, owner, l.path)
		}
		l.logger.Warn("removing stale update lock", "path", l.path, "pid", owner)
		if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing stale lock %s: %w", l.path, err)
		}
	}
	return fmt.Errorf("%w: could not acquire %s", ErrLocked, l.path)
}

// Release removes the lock file if this lock holds it.
func (l *FileLock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing lock %s: %w", l.path, err)
	}
	return nil
}

// inspect returns the PID recorded in the lock and whether the lock is
// stale. Unreadable or garbled locks are stale; a lock whose liveness
// cannot be checked is not.
func (l *FileLock) inspect() (int, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, errors.Is(err, fs.ErrNotExist)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, true
	}
	alive, err := l.pidExists(int32(pid))
	if err != nil {
		l.logger.Debug("could not check lock owner", "pid", pid, "err", err)
		return pid, false
	}
	return pid, !alive
}
