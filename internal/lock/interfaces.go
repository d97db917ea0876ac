package lock

import "context"

// LockOperations defines the interface for working copy locks.
type LockOperations interface {
	Acquire(ctx context.Context, repoPath string) (*Lock, error)
	Wait(ctx context.Context, repoPath string) (*Lock, error)
	IsLocked(repoPath string) (bool, int, error)
}

// Ensure Manager implements LockOperations
var _ LockOperations = (*Manager)(nil)
