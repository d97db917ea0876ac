// Package orchestrator drives a working copy through a branch synchronization pipeline.
package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jayteealao/branchsync/internal/errors"
	"github.com/jayteealao/branchsync/internal/git"
	"github.com/jayteealao/branchsync/internal/notify"
	"github.com/jayteealao/branchsync/internal/prompt"
	"github.com/jayteealao/branchsync/internal/state"
)

// ConflictPrompt is the question asked when a pull stops on conflicts.
const ConflictPrompt = "Some conflicts are waiting for you, did you fix them?"

// modePush labels the step result of an integration branch's final push.
const modePush = "push"

// OutcomeKind distinguishes the two results of a pull.
type OutcomeKind int

const (
	PullSucceeded OutcomeKind = iota
	PullConflicted
)

// PullOutcome is the result of pulling a source branch into the checked out branch.
// Conflicted outcomes carry the files git left pending and the error it stopped
// with. SummaryErr is set when the pending files could not be listed.
type PullOutcome struct {
	Kind       OutcomeKind
	Summary    git.DiffSummary
	Cause      error
	SummaryErr error
}

// Recorder persists run history. state.StateStore satisfies it.
type Recorder interface {
	CreateRun(ctx context.Context, r *state.Run) error
	UpdateRunStatus(ctx context.Context, id, status string, errorMsg *string) error
	AddStepResult(ctx context.Context, sr *state.StepResult) error
}

// Notifier receives run events. notify.Manager satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event notify.Event) error
}

// Options configures a Synchronizer.
type Options struct {
	Pipeline Pipeline
	// PushRemote is used for branches that have no tracking branch.
	PushRemote string

	OnInfo    func(msg string) // Callback for progress messages
	OnSuccess func(msg string) // Callback for completed actions
	OnError   func(msg string) // Callback for failures shown to the operator
	OnVerbose func(msg string) // Callback for verbose messages

	Recorder Recorder
	Notifier Notifier
}

// Synchronizer runs a Pipeline against a single working copy.
// It is not safe for concurrent use: every step mutates the same working tree.
type Synchronizer struct {
	repo      git.Repository
	confirmer prompt.Confirmer
	pipeline  Pipeline

	pushRemote string

	onInfo    func(string)
	onSuccess func(string)
	onError   func(string)
	onVerbose func(string)

	recorder Recorder
	notifier Notifier

	run     *state.Run
	seq     int
	current string // branch of the step in progress
}

// NewSynchronizer creates a Synchronizer for repo.
func NewSynchronizer(repo git.Repository, confirmer prompt.Confirmer, opts Options) *Synchronizer {
	s := &Synchronizer{
		repo:       repo,
		confirmer:  confirmer,
		pipeline:   opts.Pipeline,
		pushRemote: opts.PushRemote,
		onInfo:     opts.OnInfo,
		onSuccess:  opts.OnSuccess,
		onError:    opts.OnError,
		onVerbose:  opts.OnVerbose,
		recorder:   opts.Recorder,
		notifier:   opts.Notifier,
	}

	if s.pushRemote == "" {
		s.pushRemote = DefaultRemote
	}
	if s.onInfo == nil {
		s.onInfo = func(msg string) { fmt.Println(msg) }
	}
	if s.onSuccess == nil {
		s.onSuccess = func(msg string) {}
	}
	if s.onError == nil {
		s.onError = func(msg string) {}
	}
	if s.onVerbose == nil {
		s.onVerbose = func(msg string) {}
	}

	return s
}

// RunID returns the id of the run being recorded, or "" when there is no recorder.
func (s *Synchronizer) RunID() string {
	if s.run == nil {
		return ""
	}
	return s.run.ID
}

// Run executes the whole pipeline: fetch upstream, every step in order, then the
// integration branch. It stops at the first fatal error and returns
// ErrOperatorDeclined when the operator gives up on a conflict.
func (s *Synchronizer) Run(ctx context.Context) error {
	s.startRun(ctx)
	err := s.execute(ctx)
	s.finishRun(ctx, err)
	return err
}

func (s *Synchronizer) execute(ctx context.Context) error {
	if !s.repo.IsGitRepo(ctx) {
		return fmt.Errorf("%w: %s", errors.ErrNotGitRepo, s.repo.RepoPath())
	}

	p := s.pipeline
	s.onVerbose(fmt.Sprintf("Fetching %s %s...", p.UpstreamRemote, p.UpstreamBranch))
	if err := s.repo.Fetch(ctx, p.UpstreamRemote, p.UpstreamBranch); err != nil {
		if !stderrors.Is(err, errors.ErrGitFetchFailed) {
			err = fmt.Errorf("%w: %v", errors.ErrGitFetchFailed, err)
		}
		return err
	}

	for _, step := range p.Steps {
		var err error
		switch step.Mode {
		case ModeRebase:
			err = s.Rebase(ctx, step.Target, step.Source, step.RemoteOrDefault())
		case ModeMerge:
			err = s.Merge(ctx, step.Target, step.Source, step.RemoteOrDefault())
		default:
			err = fmt.Errorf("%w: unknown mode %q", errors.ErrInvalidPipeline, step.Mode)
		}
		if err != nil {
			return err
		}
	}

	if p.Integration != nil {
		return s.BuildIntegration(ctx, *p.Integration)
	}
	return nil
}

// Rebase rebases onto on top of from pulled from remote, then decides whether to push onto.
func (s *Synchronizer) Rebase(ctx context.Context, onto, from, remote string) error {
	res := s.newStepResult(onto, from, remote, string(ModeRebase))

	err := s.upgrade(ctx, ModeRebase, onto, from, remote, res)
	if err == nil {
		_, err = s.push(ctx, onto, res)
	}

	s.recordStep(ctx, res, err)
	return err
}

// Merge merges from pulled from remote into onto. It never pushes.
// An empty remote means DefaultRemote.
func (s *Synchronizer) Merge(ctx context.Context, onto, from, remote string) error {
	if remote == "" {
		remote = DefaultRemote
	}
	res := s.newStepResult(onto, from, remote, string(ModeMerge))

	err := s.upgrade(ctx, ModeMerge, onto, from, remote, res)

	s.recordStep(ctx, res, err)
	return err
}

// BuildIntegration rebuilds integ.Branch from scratch: hard reset to integ.Base,
// one merge per source branch, then a single push decision.
func (s *Synchronizer) BuildIntegration(ctx context.Context, integ Integration) error {
	s.onInfo(fmt.Sprintf(" > Checkout %s...", integ.Branch))
	if err := s.repo.Checkout(ctx, integ.Branch); err != nil {
		return wrapIfMissing(err, errors.ErrGitCheckoutFailed)
	}

	s.onVerbose(fmt.Sprintf("Resetting %s to %s", integ.Branch, integ.Base))
	if err := s.repo.HardReset(ctx, integ.Base); err != nil {
		return wrapIfMissing(err, errors.ErrGitResetFailed)
	}

	remote := integ.RemoteOrDefault()
	for _, source := range integ.Merges {
		if err := s.Merge(ctx, integ.Branch, source, remote); err != nil {
			return err
		}
	}

	res := s.newStepResult(integ.Branch, "", "", modePush)
	_, err := s.push(ctx, integ.Branch, res)
	s.recordStep(ctx, res, err)
	return err
}

// Push force-pushes branch when it has diverged from its tracking branch in both
// directions. A branch that is only ahead, only behind, or level is left alone.
// It reports whether a push happened.
func (s *Synchronizer) Push(ctx context.Context, branch string) (bool, error) {
	return s.push(ctx, branch, nil)
}

func (s *Synchronizer) push(ctx context.Context, branch string, res *state.StepResult) (bool, error) {
	st, err := s.repo.Status(ctx)
	if err != nil {
		return false, err
	}
	remote := s.pushRemote
	if r, _, ok := strings.Cut(st.Upstream, "/"); ok && r != "" {
		remote = r
	}
	if res != nil {
		res.Ahead = st.Ahead
		res.Behind = st.Behind
		if res.Remote == "" {
			res.Remote = remote
		}
	}

	// HEAD is elsewhere when the operator confirmed a conflict before running
	// git rebase --continue. There is no divergence to act on.
	if st.Branch != "" && st.Branch != branch {
		s.onVerbose(fmt.Sprintf("Warning: %s is checked out instead of %s, not pushing", st.Branch, branch))
		if res != nil {
			res.Ahead, res.Behind = 0, 0
		}
		s.onSuccess(fmt.Sprintf("   > %s branch is already up-to-date", branch))
		return false, nil
	}

	s.onVerbose(fmt.Sprintf("%s is %d ahead, %d behind %s", branch, st.Ahead, st.Behind, st.Upstream))

	// Ahead-only branches are not pushed.
	if st.Ahead == 0 || st.Behind == 0 {
		s.onSuccess(fmt.Sprintf("   > %s branch is already up-to-date", branch))
		return false, nil
	}

	s.onInfo(fmt.Sprintf("   > Push %s branch", branch))
	if err := s.repo.Push(ctx, remote, branch, git.PushOptions{Force: true}); err != nil {
		return false, wrapIfMissing(err, errors.ErrGitPushFailed)
	}
	if res != nil {
		res.Pushed = true
	}
	s.onSuccess(fmt.Sprintf("   > %s branch is up-to-date", branch))

	event := notify.Event{
		Type:   notify.EventBranchPushed,
		Branch: branch,
		Remote: remote,
		Ahead:  st.Ahead,
		Behind: st.Behind,
		Status: "pushed",
	}
	if res != nil {
		event.Mode = res.Mode
	}
	s.notify(ctx, event)
	return true, nil
}

// upgrade checks out onto and pulls from into it. Conflicts and other pull
// failures are handed to the operator; only a checkout failure, cancellation
// or the operator declining is returned.
func (s *Synchronizer) upgrade(ctx context.Context, mode Mode, onto, from, remote string, res *state.StepResult) error {
	s.current = onto
	s.onInfo(fmt.Sprintf(" > Checkout %s...", onto))
	if err := s.repo.Checkout(ctx, onto); err != nil {
		return wrapIfMissing(err, errors.ErrGitCheckoutFailed)
	}

	s.onInfo(fmt.Sprintf("   > Acting on %s branch...", onto))
	outcome := s.pull(ctx, mode, remote, from)

	switch outcome.Kind {
	case PullSucceeded:
		res.Outcome = state.OutcomeClean
		return nil
	default:
		if err := ctx.Err(); err != nil {
			return err
		}
		s.onVerbose(fmt.Sprintf("Pull of %s/%s into %s stopped: %v", remote, from, onto, outcome.Cause))
		return s.checkSummary(ctx, mode, onto, remote, outcome, res)
	}
}

// pull pulls branch from remote into the checked out branch. When git stops,
// the outcome lists the pending files so the operator can be shown them.
func (s *Synchronizer) pull(ctx context.Context, mode Mode, remote, branch string) PullOutcome {
	err := s.repo.Pull(ctx, remote, branch, git.PullOptions{Rebase: mode == ModeRebase, Quiet: true})
	if err == nil {
		return PullOutcome{Kind: PullSucceeded}
	}

	outcome := PullOutcome{Kind: PullConflicted, Cause: err}
	if ctx.Err() != nil {
		return outcome
	}
	outcome.Summary, outcome.SummaryErr = s.repo.DiffSummary(ctx)
	return outcome
}

// checkSummary shows the files left pending by a stopped pull and asks the
// operator whether they resolved them. A "no", or a prompt that could not be
// answered, aborts the in-progress rebase or merge and returns ErrOperatorDeclined.
// The operator is asked even when the pending files could not be listed.
func (s *Synchronizer) checkSummary(ctx context.Context, mode Mode, branch, remote string, outcome PullOutcome, res *state.StepResult) error {
	summary := outcome.Summary
	res.ConflictFiles = summary.Files

	if outcome.SummaryErr != nil {
		s.onError(fmt.Sprintf("   > Could not list pending files: %v", outcome.SummaryErr))
	} else {
		s.onInfo(fmt.Sprintf("   > %d pending file(s):", summary.Changed))
		for _, file := range summary.Files {
			s.onInfo(fmt.Sprintf("     - %s", file))
		}
	}

	event := notify.Event{
		Type:    notify.EventConflict,
		Branch:  branch,
		Mode:    string(mode),
		Remote:  remote,
		Files:   summary.Files,
		Status:  "conflict",
		Message: fmt.Sprintf("%d pending file(s)", summary.Changed),
	}
	if outcome.SummaryErr != nil {
		event.Message = "pending files could not be listed"
	}
	s.notify(ctx, event)

	fixed, err := s.confirmer.Confirm(ctx, ConflictPrompt, true)
	if err != nil {
		s.onVerbose(fmt.Sprintf("Confirmation failed: %v", err))
		fixed = false
	}
	if fixed {
		res.Outcome = state.OutcomeResolved
		return nil
	}

	// The abort must run even if ctx was cancelled by the interrupted prompt.
	abortCtx := context.WithoutCancel(ctx)
	var abortErr error
	if mode == ModeRebase {
		abortErr = s.repo.RebaseAbort(abortCtx)
	} else {
		abortErr = s.repo.MergeAbort(abortCtx)
	}
	res.Outcome = state.OutcomeAborted

	s.onError("Aborting process...")
	if abortErr != nil {
		return fmt.Errorf("%w on %s: %v", errors.ErrOperatorDeclined, branch, abortErr)
	}
	return fmt.Errorf("%w on %s", errors.ErrOperatorDeclined, branch)
}

// --- Run history and notifications ---

func (s *Synchronizer) startRun(ctx context.Context) {
	s.seq = 0
	s.run = nil
	s.current = ""

	if s.recorder != nil {
		r := &state.Run{RepoPath: s.repo.RepoPath(), Status: state.RunRunning}
		if err := s.recorder.CreateRun(ctx, r); err != nil {
			s.onVerbose(fmt.Sprintf("Warning: failed to record run: %v", err))
		} else {
			s.run = r
		}
	}

	s.notify(ctx, notify.Event{Type: notify.EventSyncStarted, Status: state.RunRunning})
}

func (s *Synchronizer) finishRun(ctx context.Context, runErr error) {
	ctx = context.WithoutCancel(ctx)

	status := RunStatus(runErr)
	event := notify.Event{Status: status}
	switch status {
	case state.RunSucceeded:
		event.Type = notify.EventSyncSucceeded
	case state.RunAborted:
		event.Type = notify.EventSyncAborted
		event.Message = runErr.Error()
	default:
		event.Type = notify.EventSyncFailed
		event.Message = runErr.Error()
	}
	if status != state.RunSucceeded {
		event.Branch = s.current
	}

	if s.recorder != nil && s.run != nil {
		var msg *string
		if runErr != nil {
			m := runErr.Error()
			msg = &m
		}
		if err := s.recorder.UpdateRunStatus(ctx, s.run.ID, status, msg); err != nil {
			s.onVerbose(fmt.Sprintf("Warning: failed to update run status: %v", err))
		}
		s.run.Status = status
	}

	s.notify(ctx, event)
}

// RunStatus maps the error returned by Run to the status a run is recorded with.
func RunStatus(err error) string {
	switch {
	case err == nil:
		return state.RunSucceeded
	case stderrors.Is(err, errors.ErrOperatorDeclined):
		return state.RunAborted
	case stderrors.Is(err, context.Canceled):
		return state.RunInterrupted
	default:
		return state.RunFailed
	}
}

func (s *Synchronizer) newStepResult(target, source, remote, mode string) *state.StepResult {
	s.seq++
	return &state.StepResult{
		Seq:    s.seq,
		Target: target,
		Source: source,
		Remote: remote,
		Mode:   mode,
	}
}

func (s *Synchronizer) recordStep(ctx context.Context, res *state.StepResult, stepErr error) {
	if stepErr != nil && res.Outcome != state.OutcomeAborted {
		res.Outcome = state.OutcomeFailed
	}
	if res.Outcome == "" {
		res.Outcome = state.OutcomeClean
	}

	if s.recorder == nil || s.run == nil {
		return
	}
	res.RunID = s.run.ID
	if err := s.recorder.AddStepResult(context.WithoutCancel(ctx), res); err != nil {
		s.onVerbose(fmt.Sprintf("Warning: failed to record step %s: %v", res.Target, err))
	}
}

func (s *Synchronizer) notify(ctx context.Context, event notify.Event) {
	if s.notifier == nil {
		return
	}
	event.Repo = s.repo.RepoPath()
	if s.run != nil {
		event.RunID = s.run.ID
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.onVerbose(fmt.Sprintf("Warning: notification failed: %v", err))
	}
}

func wrapIfMissing(err, sentinel error) error {
	if stderrors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
