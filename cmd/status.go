package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/jayteealao/branchsync/internal/errors"
	"github.com/jayteealao/branchsync/internal/git"
	"github.com/jayteealao/branchsync/internal/state"
	"github.com/jayteealao/branchsync/internal/tui"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how every pipeline branch compares to its remote copy",
	Long: `Show the state of every branch the pipeline touches.

For each branch, prints its tracking branch and how many commits it is ahead
of and behind it. Diverged branches are the ones the next sync force-pushes.
Nothing is fetched and the working tree is not touched: run git fetch first
for up-to-date remote refs.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// branchStatus is one row of the status table.
type branchStatus struct {
	Branch   string
	Current  bool
	Exists   bool
	Upstream string
	Ahead    int
	Behind   int
}

// Summary describes the branch relative to its tracking branch.
func (b branchStatus) Summary() string {
	switch {
	case !b.Exists:
		return "missing"
	case b.Upstream == "":
		return "no upstream"
	case b.Ahead != 0 && b.Behind != 0:
		return "diverged"
	case b.Ahead != 0:
		return fmt.Sprintf("ahead %d", b.Ahead)
	case b.Behind != 0:
		return fmt.Sprintf("behind %d", b.Behind)
	default:
		return "up-to-date"
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := cfg.RequireRepo(); err != nil {
		return err
	}

	mgr := git.NewManager(cfg.RepoDir)
	rows, err := collectBranchStatus(ctx, mgr, cfg.Pipeline.Branches())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Working copy: %s\n\n", cfg.RepoDir)
	renderBranchStatus(out, rows)

	store, err := initStore()
	if err != nil {
		return err
	}
	defer store.Close()

	return renderLatestRun(ctx, out, store, cfg.RepoDir)
}

// collectBranchStatus inspects each branch without touching the working tree.
func collectBranchStatus(ctx context.Context, insp git.Inspector, branches []string) ([]branchStatus, error) {
	current, err := insp.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]branchStatus, 0, len(branches))
	for _, branch := range branches {
		row := branchStatus{Branch: branch, Current: branch == current}

		exists, err := insp.BranchExists(ctx, branch)
		if err != nil {
			return nil, err
		}
		row.Exists = exists

		if exists {
			st, err := insp.Divergence(ctx, branch)
			if err != nil {
				return nil, fmt.Errorf("failed to compare %s: %w", branch, err)
			}
			row.Upstream = st.Upstream
			row.Ahead = st.Ahead
			row.Behind = st.Behind
		}

		rows = append(rows, row)
	}
	return rows, nil
}

func renderBranchStatus(w io.Writer, rows []branchStatus) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(tui.ColorMuted)).
		Headers("", "BRANCH", "UPSTREAM", "AHEAD", "BEHIND", "STATE")

	for _, r := range rows {
		marker := ""
		if r.Current {
			marker = "*"
		}
		upstream := r.Upstream
		if upstream == "" {
			upstream = "-"
		}
		t.Row(marker, r.Branch, upstream, fmt.Sprint(r.Ahead), fmt.Sprint(r.Behind), r.Summary())
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		base := lipgloss.NewStyle().Padding(0, 1)
		if row == table.HeaderRow {
			return base.Bold(true)
		}
		if col == 5 && row >= 0 && row < len(rows) {
			switch rows[row].Summary() {
			case "diverged":
				return base.Foreground(tui.ColorWarning)
			case "missing":
				return base.Foreground(tui.ColorDanger)
			case "up-to-date":
				return base.Foreground(tui.ColorSuccess)
			}
		}
		return base
	})

	fmt.Fprintln(w, t.Render())
}

func renderLatestRun(ctx context.Context, w io.Writer, store state.StateStore, repoPath string) error {
	run, err := store.GetLatestRun(ctx, repoPath)
	if err != nil {
		if stderrors.Is(err, errors.ErrRunNotFound) {
			fmt.Fprintln(w, "\nNo runs recorded yet.")
			return nil
		}
		return fmt.Errorf("failed to load last run: %w", err)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Last run:  %s %s (%s)\n", tui.GetStatusIcon(run.Status), run.Status, shortRunID(run.ID))
	fmt.Fprintf(w, "Started:   %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "Duration:  %s\n", tui.FormatDuration(run.FinishedAt.Sub(run.StartedAt)))
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:     %s\n", run.ErrorMessage)
	}
	return nil
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
