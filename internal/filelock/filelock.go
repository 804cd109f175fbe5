// Package filelock provides advisory, process-exclusive locks for the
// package cache and target directories, since multiple quarry
// invocations may run concurrently against the same workspace.
package filelock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock is a held advisory lock on a marker file. Callers must call
// Unlock to release it; the lock is also released if the
// process exits, since flock(2) locks are tied to the open file
// descriptor.
type Lock struct {
	f        *os.File
	exclusive bool
}

// Acquire opens (creating if necessary) the marker file at path and
// blocks until an exclusive advisory lock on it is held.
func Acquire(path string) (*Lock, error) {
	return acquire(path, true)
}

// AcquireShared blocks until a shared advisory lock on path is held,
// allowing multiple concurrent readers but excluding any exclusive
// holder.
func AcquireShared(path string) (*Lock, error) {
	return acquire(path, false)
}

func acquire(path string, exclusive bool) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filelock: opening %s: %w", path, err)
	}

	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		return nil, fmt.Errorf("filelock: locking %s: %w", path, err)
	}
	return &Lock{f: f, exclusive: exclusive}, nil
}

// TryAcquire attempts a non-blocking exclusive lock, returning
// ok=false (no error) if another process already holds it.
func TryAcquire(path string) (lock *Lock, ok bool, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("filelock: opening %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("filelock: locking %s: %w", path, err)
	}
	return &Lock{f: f, exclusive: true}, true, nil
}

// Unlock releases the lock and closes the underlying file descriptor.
func (l *Lock) Unlock() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return fmt.Errorf("filelock: unlocking: %w", err)
	}
	return l.f.Close()
}
