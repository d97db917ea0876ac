// Package errors provides sentinel errors for branchsync operations.
package errors

import "errors"

// Repository errors
var (
	// ErrNotGitRepo indicates the configured working copy is not a git repository.
	ErrNotGitRepo = errors.New("path is not a git repository")

	// ErrGitNotFound indicates git CLI is not available.
	ErrGitNotFound = errors.New("git command not found")

	// ErrRepoLocked indicates another sync is already running against the working copy.
	ErrRepoLocked = errors.New("working copy is locked by another sync")
)

// Git operation errors
var (
	// ErrGitFetchFailed indicates the initial upstream fetch failed.
	ErrGitFetchFailed = errors.New("git fetch failed")

	// ErrGitCheckoutFailed indicates a branch could not be checked out.
	ErrGitCheckoutFailed = errors.New("git checkout failed")

	// ErrGitPullConflict indicates a pull stopped on conflicting changes.
	ErrGitPullConflict = errors.New("git pull stopped on conflicts")

	// ErrGitPullFailed indicates a pull failed for a reason other than a conflict.
	ErrGitPullFailed = errors.New("git pull failed")

	// ErrGitPushFailed indicates the push was rejected or could not reach the remote.
	ErrGitPushFailed = errors.New("git push failed")

	// ErrGitResetFailed indicates a hard reset failed.
	ErrGitResetFailed = errors.New("git reset failed")

	// ErrGitAbortFailed indicates an in-progress rebase or merge could not be aborted.
	ErrGitAbortFailed = errors.New("git abort failed")

	// ErrBranchNotFound indicates the branch does not exist locally.
	ErrBranchNotFound = errors.New("branch not found")
)

// Sync errors
var (
	// ErrOperatorDeclined indicates the operator did not resolve a conflict.
	// The in-flight rebase or merge has been aborted and the run must stop.
	ErrOperatorDeclined = errors.New("conflicts were not resolved")

	// ErrInvalidPipeline indicates the configured pipeline is malformed.
	ErrInvalidPipeline = errors.New("invalid pipeline")

	// ErrInvalidBranchName indicates a branch or remote name is not a valid git ref name.
	ErrInvalidBranchName = errors.New("invalid branch name")
)

// State errors
var (
	// ErrRunNotFound indicates the requested sync run does not exist.
	ErrRunNotFound = errors.New("sync run not found")
)
