//go:build !windows

package barrier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const pollInterval = 100 * time.Millisecond

// LockPath returns the lock file backing the token for name
func LockPath(name string) string {
	return filepath.Join(os.TempDir(), TokenName(name)+".lock")
}

// lockFile uses an advisory flock on a well known file. The owner PID stored in the file
// is used to detect an owner that terminated while the lock was inherited by a child.
type lockFile struct {
	log       *log.Entry
	file      *os.File
	abandoned bool
}

func newBarrier(logger *log.Entry) Barrier {
	return &lockFile{log: logger}
}

func (l *lockFile) AcquireOrWait(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	path := LockPath(name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file %s: %w", path, err)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			owner := readOwner(f)
			if owner != 0 && owner != os.Getpid() && !pidAlive(l.log, owner) {
				l.log.Infof("token %s abandoned by process %d", TokenName(name), owner)
				l.abandoned = true
			}
			if err := writeOwner(f, os.Getpid()); err != nil {
				l.log.Warnf("failed to record lock owner: %v", err)
			}
			l.file = f
			return nil
		}

		if !errors.Is(err, unix.EWOULDBLOCK) {
			_ = f.Close()
			return fmt.Errorf("lock %s: %w", path, err)
		}

		if owner := readOwner(f); owner != 0 && !pidAlive(l.log, owner) {
			// The lock outlived its owner through a descriptor inherited by another process,
			// so it can never be taken. Unlinking the file lets the next Hold lock a fresh one.
			l.log.Infof("token %s held on behalf of terminated process %d", TokenName(name), owner)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				l.log.Warnf("failed to remove stale lock file %s: %v", path, err)
			}
			_ = f.Close()
			l.abandoned = true
			return nil
		}

		select {
		case <-ctx.Done():
			_ = f.Close()
			return waitError(ctx, name)
		case <-ticker.C:
		}
	}
}

func (l *lockFile) Release() error {
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil

	if err := f.Truncate(0); err != nil {
		l.log.Debugf("failed to clear lock owner: %v", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		_ = f.Close()
		return fmt.Errorf("unlock: %w", err)
	}
	return f.Close()
}

func (l *lockFile) Abandoned() bool {
	return l.abandoned
}

// Token is the host side of the barrier
type Token struct {
	file *os.File
}

// Hold takes the token for name without waiting. The host keeps it until it exits.
func Hold(name string) (*Token, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	path := LockPath(name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("token %s is already held: %w", TokenName(name), err)
	}

	if err := writeOwner(f, os.Getpid()); err != nil {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
		return nil, fmt.Errorf("record lock owner: %w", err)
	}
	return &Token{file: f}, nil
}

// SetOwner overwrites the PID recorded for the token
func (t *Token) SetOwner(pid int) error {
	return writeOwner(t.file, pid)
}

// Release clears the owner and unlocks the token
func (t *Token) Release() error {
	if t.file == nil {
		return nil
	}
	f := t.file
	t.file = nil

	_ = f.Truncate(0)
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		_ = f.Close()
		return fmt.Errorf("unlock: %w", err)
	}
	return f.Close()
}

func readOwner(f *os.File) int {
	buf := make([]byte, 32)
	n, err := f.ReadAt(buf, 0)
	if n == 0 && err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}

func writeOwner(f *os.File, pid int) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err := f.WriteAt([]byte(strconv.Itoa(pid)), 0)
	return err
}

func pidAlive(logger *log.Entry, pid int) bool {
	exists, err := process.PidExists(int32(pid))
	if err != nil {
		logger.Debugf("failed to check process %d: %v", pid, err)
		return true
	}
	return exists
}
