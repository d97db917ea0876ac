package lock

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jayteealao/branchsync/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestManager(t *testing.T) (*Manager, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "branchsync-lock-test-*")
	require.NoError(t, err)

	manager, err := NewManager(tmpDir)
	require.NoError(t, err)

	cleanup := func() {
		os.RemoveAll(tmpDir)
	}

	return manager, cleanup
}

func TestRepoKey(t *testing.T) {
	a := RepoKey("/srv/gladys")
	assert.True(t, strings.HasPrefix(a, "gladys-"))
	assert.Len(t, a, len("gladys-")+12)

	assert.Equal(t, a, RepoKey("/srv/gladys/"))
	assert.Equal(t, a, RepoKey("/srv/../srv/gladys"))
	assert.NotEqual(t, a, RepoKey("/home/me/gladys"))
	assert.True(t, strings.HasPrefix(RepoKey("/"), "root-"))
}

func TestManager_AcquireAndRelease(t *testing.T) {
	manager, cleanup := setupTestManager(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("acquire and release lock", func(t *testing.T) {
		lock, err := manager.Acquire(ctx, "/srv/gladys")
		require.NoError(t, err)
		require.NotNil(t, lock)
		assert.Equal(t, "/srv/gladys", lock.RepoPath())

		locked, _, err := manager.IsLocked("/srv/gladys")
		require.NoError(t, err)
		assert.True(t, locked)

		require.NoError(t, lock.Release())

		locked, _, err = manager.IsLocked("/srv/gladys")
		require.NoError(t, err)
		assert.False(t, locked)
	})

	t.Run("second acquisition for the same working copy fails", func(t *testing.T) {
		lock1, err := manager.Acquire(ctx, "/srv/busy")
		require.NoError(t, err)
		defer lock1.Release()

		lock2, err := manager.Acquire(ctx, "/srv/busy")
		assert.ErrorIs(t, err, errors.ErrRepoLocked)
		assert.Contains(t, err.Error(), "held by PID")
		assert.Nil(t, lock2)
	})

	t.Run("different working copies lock independently", func(t *testing.T) {
		lock1, err := manager.Acquire(ctx, "/srv/a")
		require.NoError(t, err)
		defer lock1.Release()

		lock2, err := manager.Acquire(ctx, "/srv/b")
		require.NoError(t, err)
		defer lock2.Release()
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := manager.Acquire(cctx, "/srv/cancelled")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestManager_Wait(t *testing.T) {
	manager, cleanup := setupTestManager(t)
	defer cleanup()

	t.Run("acquires when free", func(t *testing.T) {
		lock, err := manager.Wait(context.Background(), "/srv/free")
		require.NoError(t, err)
		require.NoError(t, lock.Release())
	})

	t.Run("times out while held", func(t *testing.T) {
		lock1, err := manager.Acquire(context.Background(), "/srv/held")
		require.NoError(t, err)
		defer lock1.Release()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		lock2, err := manager.Wait(ctx, "/srv/held")
		assert.ErrorIs(t, err, errors.ErrRepoLocked)
		assert.Nil(t, lock2)
	})

	t.Run("acquires once released", func(t *testing.T) {
		lock1, err := manager.Acquire(context.Background(), "/srv/handover")
		require.NoError(t, err)

		go func() {
			time.Sleep(50 * time.Millisecond)
			lock1.Release()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		lock2, err := manager.Wait(ctx, "/srv/handover")
		require.NoError(t, err)
		require.NoError(t, lock2.Release())
	})
}

func TestManager_IsLocked(t *testing.T) {
	manager, cleanup := setupTestManager(t)
	defer cleanup()

	t.Run("not locked initially", func(t *testing.T) {
		locked, pid, err := manager.IsLocked("/srv/nonexistent")
		require.NoError(t, err)
		assert.False(t, locked)
		assert.Equal(t, 0, pid)
	})

	t.Run("locked returns current pid", func(t *testing.T) {
		lock, err := manager.Acquire(context.Background(), "/srv/pid-test")
		require.NoError(t, err)
		defer lock.Release()

		locked, pid, err := manager.IsLocked("/srv/pid-test")
		require.NoError(t, err)
		assert.True(t, locked)
		assert.Equal(t, os.Getpid(), pid)
	})
}

func TestManager_StaleLockDetection(t *testing.T) {
	manager, cleanup := setupTestManager(t)
	defer cleanup()

	repo := "/srv/stale"
	lockPath, pidFile := manager.paths(repo)

	// A PID this high is not a live process
	require.NoError(t, os.WriteFile(lockPath, []byte{}, 0644))
	require.NoError(t, os.WriteFile(pidFile, []byte("999999999"), 0644))

	lock, err := manager.Acquire(context.Background(), repo)
	require.NoError(t, err)
	require.NotNil(t, lock)
	lock.Release()
}

func TestReadWritePIDFile(t *testing.T) {
	tmpDir := t.TempDir()
	pidFile := filepath.Join(tmpDir, "test.pid")

	t.Run("write and read pid", func(t *testing.T) {
		require.NoError(t, writePIDFile(pidFile))

		pid, err := readPIDFile(pidFile)
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	})

	t.Run("read non-existent file", func(t *testing.T) {
		_, err := readPIDFile(filepath.Join(tmpDir, "nonexistent.pid"))
		assert.Error(t, err)
	})
}
