package git

import (
	"context"
	stderrors "errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/jayteealao/branchsync/internal/errors"
)

// open opens the working copy's repository metadata without shelling out.
func (m *Manager) open() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(m.repoPath, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if stderrors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, errors.ErrNotGitRepo
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return repo, nil
}

// CurrentBranch returns the short name of the checked-out branch,
// or "HEAD" when the working copy is detached.
func (m *Manager) CurrentBranch(ctx context.Context) (string, error) {
	repo, err := m.open()
	if err != nil {
		return "", err
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "HEAD", nil
	}
	return head.Name().Short(), nil
}

// BranchExists reports whether a local branch with the given name exists.
func (m *Manager) BranchExists(ctx context.Context, branch string) (bool, error) {
	repo, err := m.open()
	if err != nil {
		return false, err
	}

	_, err = repo.Reference(plumbing.NewBranchReferenceName(branch), false)
	if err != nil {
		if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up branch %s: %w", branch, err)
	}
	return true, nil
}

// Upstream returns the remote-tracking ref configured for branch
// (for example "origin/feature"), or "" when none is configured.
func (m *Manager) Upstream(ctx context.Context, branch string) (string, error) {
	repo, err := m.open()
	if err != nil {
		return "", err
	}

	exists, err := m.BranchExists(ctx, branch)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", errors.ErrBranchNotFound, branch)
	}

	cfg, err := repo.Config()
	if err != nil {
		return "", fmt.Errorf("failed to read repository config: %w", err)
	}

	b, ok := cfg.Branches[branch]
	if !ok || b.Remote == "" || b.Merge == "" {
		return "", nil
	}
	if b.Remote == "." {
		return b.Merge.Short(), nil
	}
	return b.Remote + "/" + b.Merge.Short(), nil
}
