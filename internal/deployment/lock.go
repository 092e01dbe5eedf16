package deployment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Lock acquires the advisory per-deployment lock that serializes mutating
// commands. It returns a release func that must run on every exit path,
// normal or not. A second acquisition fails fast with LockHeldError; the
// provisioning backend's own state locking remains a second line of
// defense, not a substitute.
//
// A lock file whose recorded process no longer exists is left over from a
// killed run and is reclaimed.
func (s *Store) Lock(name string) (func(), error) {
	path := filepath.Join(s.dir(name), lockFile)

	for attempt := 0; ; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if errors.Is(err, fs.ErrExist) {
			pid := readLockPID(path)
			if attempt == 0 && !processAlive(pid) {
				os.Remove(path)
				continue
			}
			return nil, &LockHeldError{Name: name, PID: pid}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock for %s: %w", name, err)
		}

		fmt.Fprintf(f, "%d\n", os.Getpid())
		f.Close()

		return func() { os.Remove(path) }, nil
	}
}

func readLockPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// processAlive reports whether pid names a running process. Signal 0
// performs the existence check without delivering anything; EPERM means the
// process exists but belongs to another user, so the lock is still held.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
