package orchestrator

import (
	"fmt"

	apperrors "github.com/jayteealao/branchsync/internal/errors"
	"github.com/jayteealao/branchsync/internal/validate"
)

// Mode selects how a step integrates its source branch.
type Mode string

const (
	// ModeRebase replays the target's commits on top of the source, rewriting history.
	ModeRebase Mode = "rebase"
	// ModeMerge records a merge commit and never rewrites history.
	ModeMerge Mode = "merge"
)

// DefaultRemote is used when a step does not name a remote.
const DefaultRemote = "origin"

// Step updates Target from Source on Remote.
// Rebase steps are followed by a push decision; merge steps are not.
type Step struct {
	Target string `mapstructure:"target" json:"target"`
	Source string `mapstructure:"source" json:"source"`
	Remote string `mapstructure:"remote" json:"remote,omitempty"`
	Mode   Mode   `mapstructure:"mode" json:"mode"`
}

// RemoteOrDefault returns the step's remote, falling back to DefaultRemote.
func (s Step) RemoteOrDefault() string {
	if s.Remote == "" {
		return DefaultRemote
	}
	return s.Remote
}

// Integration describes a branch rebuilt from scratch on every run:
// hard reset to Base, then one merge per entry in Merges, then a single push decision.
type Integration struct {
	Branch string   `mapstructure:"branch" json:"branch"`
	Base   string   `mapstructure:"base" json:"base"`
	Remote string   `mapstructure:"remote" json:"remote,omitempty"`
	Merges []string `mapstructure:"merges" json:"merges"`
}

// RemoteOrDefault returns the remote merges are pulled from.
func (i Integration) RemoteOrDefault() string {
	if i.Remote == "" {
		return DefaultRemote
	}
	return i.Remote
}

// Pipeline is the ordered list of operations a sync run executes.
type Pipeline struct {
	UpstreamRemote string       `mapstructure:"upstream_remote" json:"upstream_remote"`
	UpstreamBranch string       `mapstructure:"upstream_branch" json:"upstream_branch"`
	Steps          []Step       `mapstructure:"steps" json:"steps"`
	Integration    *Integration `mapstructure:"integration" json:"integration,omitempty"`
}

// DefaultPipeline returns the pipeline branchsync runs when none is configured.
func DefaultPipeline() Pipeline {
	return Pipeline{
		UpstreamRemote: "upstream",
		UpstreamBranch: "master",
		Steps: []Step{
			{Target: "oauth2-server", Source: "master", Remote: "upstream", Mode: ModeRebase},
			{Target: "google-actions-service", Source: "oauth2-server", Remote: DefaultRemote, Mode: ModeRebase},

			{Target: "awox-service", Source: "master", Remote: "upstream", Mode: ModeRebase},
			{Target: "google-actions-television", Source: "master", Remote: "upstream", Mode: ModeRebase},
		},
		Integration: &Integration{
			Branch: "atrovato-version",
			Base:   "upstream/master",
			Remote: DefaultRemote,
			Merges: []string{
				"google-actions-service",
				"awox-service",
				"broadlink",
				"google-actions-television",
			},
		},
	}
}

// Branches returns every local branch the pipeline checks out, in pipeline order,
// without duplicates.
func (p Pipeline) Branches() []string {
	var branches []string
	seen := make(map[string]bool)
	add := func(b string) {
		if b != "" && !seen[b] {
			seen[b] = true
			branches = append(branches, b)
		}
	}

	for _, s := range p.Steps {
		add(s.Target)
	}
	if p.Integration != nil {
		add(p.Integration.Branch)
	}
	return branches
}

// Validate checks that every name in the pipeline is usable by git.
func (p Pipeline) Validate() error {
	if err := validate.RemoteName(p.UpstreamRemote); err != nil {
		return fmt.Errorf("%w: upstream remote: %v", apperrors.ErrInvalidPipeline, err)
	}
	if err := validate.BranchName(p.UpstreamBranch); err != nil {
		return fmt.Errorf("%w: upstream branch: %v", apperrors.ErrInvalidPipeline, err)
	}

	for i, s := range p.Steps {
		if s.Mode != ModeRebase && s.Mode != ModeMerge {
			return fmt.Errorf("%w: step %d: unknown mode %q", apperrors.ErrInvalidPipeline, i+1, s.Mode)
		}
		if err := validate.BranchName(s.Target); err != nil {
			return fmt.Errorf("%w: step %d target: %v", apperrors.ErrInvalidPipeline, i+1, err)
		}
		if err := validate.BranchName(s.Source); err != nil {
			return fmt.Errorf("%w: step %d source: %v", apperrors.ErrInvalidPipeline, i+1, err)
		}
		if err := validate.RemoteName(s.RemoteOrDefault()); err != nil {
			return fmt.Errorf("%w: step %d remote: %v", apperrors.ErrInvalidPipeline, i+1, err)
		}
	}

	if p.Integration == nil {
		return nil
	}

	integ := p.Integration
	if err := validate.BranchName(integ.Branch); err != nil {
		return fmt.Errorf("%w: integration branch: %v", apperrors.ErrInvalidPipeline, err)
	}
	if err := validate.GitRef(integ.Base); err != nil {
		return fmt.Errorf("%w: integration base: %v", apperrors.ErrInvalidPipeline, err)
	}
	if err := validate.RemoteName(integ.RemoteOrDefault()); err != nil {
		return fmt.Errorf("%w: integration remote: %v", apperrors.ErrInvalidPipeline, err)
	}
	for _, m := range integ.Merges {
		if err := validate.BranchName(m); err != nil {
			return fmt.Errorf("%w: integration merge: %v", apperrors.ErrInvalidPipeline, err)
		}
	}

	return nil
}
