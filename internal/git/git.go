// Package git provides git operations via the git CLI.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/jayteealao/branchsync/internal/errors"
)

// Manager handles git operations for a working copy.
type Manager struct {
	repoPath string
}

// PullOptions controls how a pull integrates the fetched branch.
type PullOptions struct {
	// Rebase replays local commits on top of the fetched branch.
	// When false the pull creates a merge commit.
	Rebase bool
	// Quiet suppresses git's progress output.
	Quiet bool
}

// PushOptions controls a push.
type PushOptions struct {
	Force bool
}

// NewManager creates a new git manager for the given working copy.
func NewManager(repoPath string) *Manager {
	return &Manager{repoPath: repoPath}
}

// RepoPath returns the repository path.
func (m *Manager) RepoPath() string {
	return m.repoPath
}

// IsGitRepo checks if the path is a valid git working copy.
func (m *Manager) IsGitRepo(ctx context.Context) bool {
	if _, err := m.open(); err != nil {
		return false
	}
	cmd := exec.CommandContext(ctx, "git", "-C", m.repoPath, "rev-parse", "--is-inside-work-tree")
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) == "true"
}

// Fetch fetches a single branch from a remote.
func (m *Manager) Fetch(ctx context.Context, remote, branch string) error {
	output, err := m.run(ctx, "fetch", remote, branch)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %s", errors.ErrGitFetchFailed, remote, branch, output)
	}
	return nil
}

// Checkout switches the working copy to the given branch.
func (m *Manager) Checkout(ctx context.Context, branch string) error {
	output, err := m.run(ctx, "checkout", branch)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", errors.ErrGitCheckoutFailed, branch, output)
	}
	return nil
}

// Pull pulls branch from remote into the current branch.
// Returns an error wrapping ErrGitPullConflict when git stopped on conflicting
// changes, and ErrGitPullFailed for any other failure.
func (m *Manager) Pull(ctx context.Context, remote, branch string, opts PullOptions) error {
	args := []string{"pull"}
	if opts.Rebase {
		args = append(args, "--rebase")
	} else {
		args = append(args, "--no-rebase")
	}
	if opts.Quiet {
		args = append(args, "--quiet")
	}
	args = append(args, remote, branch)

	output, err := m.run(ctx, args...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", errors.ErrGitPullFailed, ctx.Err())
	}
	if isConflictOutput(output) || m.hasUnmergedPaths(ctx) {
		return fmt.Errorf("%w: %s", errors.ErrGitPullConflict, output)
	}
	return fmt.Errorf("%w: %s", errors.ErrGitPullFailed, output)
}

// Push pushes branch to remote.
func (m *Manager) Push(ctx context.Context, remote, branch string, opts PushOptions) error {
	args := []string{"push"}
	if opts.Force {
		args = append(args, "--force")
	}
	args = append(args, remote, branch)

	output, err := m.run(ctx, args...)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %s", errors.ErrGitPushFailed, remote, branch, output)
	}
	return nil
}

// Status returns the divergence of the current branch from its tracking branch.
// A branch without a tracking branch reports zero ahead and behind.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", m.repoPath, "status", "--porcelain=v2", "--branch", "--untracked-files=no")
	output, err := cmd.Output()
	if err != nil {
		return Status{}, fmt.Errorf("failed to get status: %w", err)
	}
	return ParseStatus(string(output))
}

// DiffSummary lists the files that differ between the working tree and the index,
// which during a stopped rebase or merge includes every unmerged path.
func (m *Manager) DiffSummary(ctx context.Context) (DiffSummary, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", m.repoPath, "diff", "--name-only")
	output, err := cmd.Output()
	if err != nil {
		return DiffSummary{}, fmt.Errorf("failed to get diff summary: %w", err)
	}
	return ParseDiffSummary(string(output)), nil
}

// HardReset resets the current branch, index and working tree to ref.
func (m *Manager) HardReset(ctx context.Context, ref string) error {
	output, err := m.run(ctx, "reset", "--hard", ref)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", errors.ErrGitResetFailed, ref, output)
	}
	return nil
}

// RebaseAbort aborts an in-progress rebase.
func (m *Manager) RebaseAbort(ctx context.Context) error {
	output, err := m.run(ctx, "rebase", "--abort")
	if err != nil {
		return fmt.Errorf("%w: rebase: %s", errors.ErrGitAbortFailed, output)
	}
	return nil
}

// MergeAbort aborts an in-progress merge.
func (m *Manager) MergeAbort(ctx context.Context) error {
	output, err := m.run(ctx, "merge", "--abort")
	if err != nil {
		return fmt.Errorf("%w: merge: %s", errors.ErrGitAbortFailed, output)
	}
	return nil
}

// Divergence returns how far branch is ahead of and behind its tracking branch.
func (m *Manager) Divergence(ctx context.Context, branch string) (Status, error) {
	upstream, err := m.Upstream(ctx, branch)
	if err != nil {
		return Status{}, err
	}
	st := Status{Branch: branch, Upstream: upstream}
	if upstream == "" {
		return st, nil
	}

	cmd := exec.CommandContext(ctx, "git", "-C", m.repoPath, "rev-list", "--left-right", "--count", branch+"..."+upstream)
	output, err := cmd.Output()
	if err != nil {
		return Status{}, fmt.Errorf("failed to count commits for %s: %w", branch, err)
	}
	ahead, behind, err := parseLeftRight(string(output))
	if err != nil {
		return Status{}, err
	}
	st.Ahead = ahead
	st.Behind = behind
	return st, nil
}

// run executes a git command in the working copy and returns its trimmed combined output.
func (m *Manager) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", m.repoPath}, args...)...)
	output, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(output)), err
}

// hasUnmergedPaths reports whether the index holds conflicted entries.
// Quiet pulls do not always print conflict details, so the index is the
// authoritative signal.
func (m *Manager) hasUnmergedPaths(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "git", "-C", m.repoPath, "ls-files", "--unmerged")
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) != ""
}

// CheckInstalled returns ErrGitNotFound when the git CLI is not on PATH.
func CheckInstalled() error {
	if _, err := exec.LookPath("git"); err != nil {
		return errors.ErrGitNotFound
	}
	return nil
}

// conflictMarkers are phrases git prints when a rebase or merge stops on conflicts.
var conflictMarkers = []string{
	"CONFLICT",
	"could not apply",
	"Automatic merge failed",
	"Resolve all conflicts manually",
	"needs merge",
	"you need to resolve your current index first",
}

func isConflictOutput(output string) bool {
	for _, marker := range conflictMarkers {
		if strings.Contains(output, marker) {
			return true
		}
	}
	return false
}
