// Package lock provides per-working-copy file locking with PID-based stale detection.
package lock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/jayteealao/branchsync/internal/errors"
)

// Lock represents a held lock on a working copy.
type Lock struct {
	flock    *flock.Flock
	pidFile  string
	lockPath string
	repoPath string
}

// Manager manages working copy locks under <dataDir>/locks.
type Manager struct {
	lockDir string
}

// NewManager creates a new lock manager.
func NewManager(dataDir string) (*Manager, error) {
	lockDir := filepath.Join(dataDir, "locks")
	if err := os.MkdirAll(lockDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &Manager{lockDir: lockDir}, nil
}

// RepoKey derives a stable, filesystem-safe lock name for a working copy path.
func RepoKey(repoPath string) string {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		abs = repoPath
	}
	abs = filepath.Clean(abs)

	sum := sha256.Sum256([]byte(abs))
	base := filepath.Base(abs)
	if base == string(filepath.Separator) || base == "." {
		base = "root"
	}
	return base + "-" + hex.EncodeToString(sum[:])[:12]
}

func (m *Manager) paths(repoPath string) (lockPath, pidFile string) {
	key := RepoKey(repoPath)
	return filepath.Join(m.lockDir, key+".lock"), filepath.Join(m.lockDir, key+".pid")
}

// Acquire takes the lock for repoPath without waiting.
// If another process holds it, ErrRepoLocked is returned with the holder's PID when known.
func (m *Manager) Acquire(ctx context.Context, repoPath string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lockPath, pidFile := m.paths(repoPath)
	m.cleanStaleLock(pidFile, lockPath)

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, lockedError(pidFile)
	}

	return m.hold(fl, lockPath, pidFile, repoPath)
}

// Wait blocks until the lock for repoPath is acquired or ctx is done.
func (m *Manager) Wait(ctx context.Context, repoPath string) (*Lock, error) {
	lockPath, pidFile := m.paths(repoPath)
	m.cleanStaleLock(pidFile, lockPath)

	fl := flock.New(lockPath)

	// Try to acquire lock with timeout
	locked, err := fl.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", lockedError(pidFile), ctx.Err())
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, lockedError(pidFile)
	}

	return m.hold(fl, lockPath, pidFile, repoPath)
}

func (m *Manager) hold(fl *flock.Flock, lockPath, pidFile, repoPath string) (*Lock, error) {
	if err := writePIDFile(pidFile); err != nil {
		fl.Unlock()
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}

	return &Lock{
		flock:    fl,
		pidFile:  pidFile,
		lockPath: lockPath,
		repoPath: repoPath,
	}, nil
}

func lockedError(pidFile string) error {
	if pid, err := readPIDFile(pidFile); err == nil {
		return fmt.Errorf("%w: held by PID %d", errors.ErrRepoLocked, pid)
	}
	return errors.ErrRepoLocked
}

// IsLocked reports whether a sync currently holds repoPath, and its PID when known.
func (m *Manager) IsLocked(repoPath string) (bool, int, error) {
	lockPath, pidFile := m.paths(repoPath)

	fl := flock.New(lockPath)

	// Try to acquire briefly to check if locked
	locked, err := fl.TryLock()
	if err != nil {
		return false, 0, fmt.Errorf("failed to check lock: %w", err)
	}

	if locked {
		fl.Unlock()
		return false, 0, nil
	}

	pid, err := readPIDFile(pidFile)
	if err != nil {
		return true, 0, nil // Locked but unknown PID
	}

	return true, pid, nil
}

// cleanStaleLock removes lock files left behind by a process that no longer exists.
func (m *Manager) cleanStaleLock(pidFile, lockPath string) {
	pid, err := readPIDFile(pidFile)
	if err != nil {
		return
	}

	if isProcessRunning(pid) {
		return
	}

	os.Remove(pidFile)
	os.Remove(lockPath)
}

// Release releases the lock.
func (l *Lock) Release() error {
	os.Remove(l.pidFile)

	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	os.Remove(l.lockPath)

	return nil
}

// RepoPath returns the working copy this lock protects.
func (l *Lock) RepoPath() string {
	return l.repoPath
}

// writePIDFile writes the current process PID to the given file.
func writePIDFile(path string) error {
	pid := os.Getpid()
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644)
}

// readPIDFile reads a PID from the given file.
func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, err
	}
	return pid, nil
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds; signal 0 probes for existence.
	err = proc.Signal(os.Signal(nil))
	if err == nil {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "process already finished") ||
		strings.Contains(errStr, "no such process") ||
		strings.Contains(errStr, "Access is denied") {
		return false
	}

	// If we can't determine, assume it's running
	return true
}
