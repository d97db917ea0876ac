package state

import "context"

// StateStore defines the interface for run history storage.
type StateStore interface {
	Close() error
	DataDir() string

	// Run operations
	CreateRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	GetLatestRun(ctx context.Context, repoPath string) (*Run, error)
	ListRuns(ctx context.Context, repoPath string, limit int) ([]*Run, error)
	UpdateRunStatus(ctx context.Context, id, status string, errorMsg *string) error
	GetInterruptedRuns(ctx context.Context) ([]*Run, error)
	MarkInterrupted(ctx context.Context, repoPath string) (int, error)

	// Step operations
	AddStepResult(ctx context.Context, sr *StepResult) error
	ListStepResults(ctx context.Context, runID string) ([]*StepResult, error)
}

// Ensure Store implements StateStore
var _ StateStore = (*Store)(nil)
