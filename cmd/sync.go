package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jayteealao/branchsync/internal/config"
	"github.com/jayteealao/branchsync/internal/git"
	"github.com/jayteealao/branchsync/internal/lock"
	"github.com/jayteealao/branchsync/internal/orchestrator"
	"github.com/jayteealao/branchsync/internal/prompt"
	"github.com/jayteealao/branchsync/internal/state"
	"github.com/jayteealao/branchsync/internal/tui"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rebase feature branches and rebuild the integration branch",
	Long: `Run the configured pipeline against the working copy.

Upstream is fetched first. Each step then checks out its target branch and
rebases (or merges) it onto the source branch. A rebased branch is force-pushed
when it has diverged from its remote copy. Finally the integration branch is
reset to upstream and every feature branch is merged into it.

When a step stops on conflicts, the pending files are listed and you are asked
whether the conflicts have been resolved. Answering no aborts the rebase or
merge and stops the run with exit status 1.

Examples:
  branchsync sync
  branchsync sync --repo-dir ~/src/gladys
  branchsync sync --wait 10m`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var syncWaitFlag time.Duration

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().DurationVar(&syncWaitFlag, "wait", 0, "wait up to this long for another run on the same working copy to finish")
}

// syncDeps are the collaborators of a sync run.
type syncDeps struct {
	Repo      git.Repository
	Confirmer prompt.Confirmer
	Store     state.StateStore
	Locks     lock.LockOperations
	Notifier  orchestrator.Notifier
	Printer   *tui.Printer
	Wait      time.Duration
}

func runSync(cmd *cobra.Command, args []string) error {
	if err := git.CheckInstalled(); err != nil {
		return err
	}
	if err := cfg.RequireRepo(); err != nil {
		return err
	}

	store, err := initStore()
	if err != nil {
		return err
	}
	defer store.Close()

	lockMgr, err := initLockManager()
	if err != nil {
		return err
	}

	deps := syncDeps{
		Repo:      git.NewManager(cfg.RepoDir),
		Confirmer: prompt.NewHuhConfirmer("Answering no aborts the current operation and stops the run."),
		Store:     store,
		Locks:     lockMgr,
		Printer:   newPrinter(cmd),
		Wait:      syncWaitFlag,
	}

	notifier := buildNotifier(cfg.Notify)
	defer notifier.Close()
	if notifier.Count() > 0 {
		deps.Notifier = notifier
	}

	printVerbose("Synchronizing %s", cfg.RepoDir)
	return syncWorkingCopy(cmd.Context(), cfg, deps)
}

// syncWorkingCopy runs the pipeline while holding the working copy lock.
func syncWorkingCopy(ctx context.Context, cfg *config.Config, deps syncDeps) error {
	repoPath := deps.Repo.RepoPath()
	out := deps.Printer

	l, err := acquireLock(ctx, deps.Locks, repoPath, deps.Wait)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer l.Release()

	// Holding the lock means nothing else is running here: any run still
	// marked running was cut short.
	if n, err := deps.Store.MarkInterrupted(ctx, repoPath); err != nil {
		out.Verbose(fmt.Sprintf("Warning: failed to check for interrupted runs: %v", err))
	} else if n > 0 {
		out.Error(fmt.Sprintf("Warning: %d previous run(s) on %s did not finish. Check the working copy before continuing.", n, repoPath))
	}

	opts := orchestrator.Options{
		Pipeline:   *cfg.Pipeline,
		PushRemote: cfg.PushRemote,
		OnInfo:     out.Info,
		OnSuccess:  out.Success,
		OnError:    out.Error,
		OnVerbose:  out.Verbose,
		Recorder:   deps.Store,
		Notifier:   deps.Notifier,
	}

	s := orchestrator.NewSynchronizer(deps.Repo, deps.Confirmer, opts)
	if err := s.Run(ctx); err != nil {
		return err
	}

	out.Success("All branches synchronized.")
	if id := s.RunID(); id != "" {
		out.Verbose(fmt.Sprintf("Run %s recorded", id))
	}
	return nil
}

func acquireLock(ctx context.Context, locks lock.LockOperations, repoPath string, wait time.Duration) (*lock.Lock, error) {
	if wait <= 0 {
		return locks.Acquire(ctx, repoPath)
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return locks.Wait(waitCtx, repoPath)
}
