package lock

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/bashhack/subsync/internal/constants"
	subsyncErrors "github.com/bashhack/subsync/internal/errors"
)

// Locker gives one subsync run exclusive ownership of a repository.
// The lock file lives inside the git directory so that every worktree path
// pointing at the same repository shares it.
type Locker struct {
	lockFile string
	lockFd   *os.File
	pid      int
}

// New creates a Locker for the repository whose git directory is gitDir.
func New(gitDir string) (*Locker, error) {
	if runtime.GOOS == "windows" {
		return nil, subsyncErrors.NewLockError("", 0,
			subsyncErrors.Wrap(subsyncErrors.ErrLockAcquisitionFailure,
				"subsync only supports Unix-like operating systems"))
	}

	return &Locker{
		lockFile: filepath.Join(gitDir, constants.LockFileName),
		pid:      os.Getpid(),
	}, nil
}

// Path returns the lock file location.
func (l *Locker) Path() string {
	return l.lockFile
}

// Acquire takes the lock or reports the PID of the run holding it.
// A leftover lock file from a crashed run is reused: the flock, not the
// file's existence, is what guards the repository.
func (l *Locker) Acquire() error {
	if l.lockFd != nil {
		return nil
	}

	fd, err := os.OpenFile(l.lockFile, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return subsyncErrors.NewLockError(l.lockFile, 0,
			subsyncErrors.Wrap(subsyncErrors.ErrLockAcquisitionFailure, err.Error()))
	}

	if err := syscall.Flock(int(fd.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = fd.Close()

		// EWOULDBLOCK and EAGAIN are distinct on some older systems
		if subsyncErrors.Is(err, syscall.EWOULDBLOCK) || subsyncErrors.Is(err, syscall.EAGAIN) {
			otherPid, _ := readPid(l.lockFile)
			return subsyncErrors.NewLockError(l.lockFile, otherPid, subsyncErrors.ErrAlreadyRunning)
		}
		return subsyncErrors.NewLockError(l.lockFile, 0,
			subsyncErrors.Wrap(subsyncErrors.ErrLockAcquisitionFailure, err.Error()))
	}

	l.lockFd = fd
	if err := l.writePid(); err != nil {
		releaseErr := l.Release()
		return subsyncErrors.Join(err, releaseErr)
	}
	return nil
}

// writePid replaces the lock file contents with the current PID
func (l *Locker) writePid() error {
	if err := l.lockFd.Truncate(0); err != nil {
		return subsyncErrors.NewLockError(l.lockFile, l.pid,
			subsyncErrors.Wrap(err, "failed to truncate lock file"))
	}
	if _, err := l.lockFd.WriteAt([]byte(strconv.Itoa(l.pid)), 0); err != nil {
		return subsyncErrors.NewLockError(l.lockFile, l.pid,
			subsyncErrors.Wrap(err, "failed to write PID to lock file"))
	}
	return nil
}

// readPid reads the PID recorded by the current lock holder
func readPid(lockFile string) (int, error) {
	data, err := os.ReadFile(lockFile)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// Release unlocks and removes the lock file. It is safe to call when the
// lock was never acquired.
func (l *Locker) Release() error {
	if l.lockFd == nil {
		return nil
	}

	var err error
	if flockErr := syscall.Flock(int(l.lockFd.Fd()), syscall.LOCK_UN); flockErr != nil {
		err = subsyncErrors.NewLockError(l.lockFile, l.pid,
			subsyncErrors.Wrap(flockErr, "failed to release lock"))
	}

	// Always close and remove, even if unlocking failed
	if closeErr := l.lockFd.Close(); closeErr != nil && err == nil {
		err = subsyncErrors.NewLockError(l.lockFile, l.pid,
			subsyncErrors.Wrap(closeErr, "failed to close lock file"))
	}
	l.lockFd = nil

	if removeErr := os.Remove(l.lockFile); removeErr != nil && !os.IsNotExist(removeErr) && err == nil {
		err = subsyncErrors.NewLockError(l.lockFile, l.pid,
			subsyncErrors.Wrap(removeErr, "failed to remove lock file"))
	}

	return err
}
