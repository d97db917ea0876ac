package git

import "context"

// Repository defines the git operations the synchronizer drives.
type Repository interface {
	RepoPath() string
	IsGitRepo(ctx context.Context) bool
	Fetch(ctx context.Context, remote, branch string) error
	Checkout(ctx context.Context, branch string) error
	Pull(ctx context.Context, remote, branch string, opts PullOptions) error
	Push(ctx context.Context, remote, branch string, opts PushOptions) error
	Status(ctx context.Context) (Status, error)
	DiffSummary(ctx context.Context) (DiffSummary, error)
	HardReset(ctx context.Context, ref string) error
	RebaseAbort(ctx context.Context) error
	MergeAbort(ctx context.Context) error
}

// Inspector defines read-only queries used to report on branches
// without touching the working tree.
type Inspector interface {
	CurrentBranch(ctx context.Context) (string, error)
	BranchExists(ctx context.Context, branch string) (bool, error)
	Upstream(ctx context.Context, branch string) (string, error)
	Divergence(ctx context.Context, branch string) (Status, error)
}

// Ensure Manager implements Repository and Inspector
var (
	_ Repository = (*Manager)(nil)
	_ Inspector  = (*Manager)(nil)
)
