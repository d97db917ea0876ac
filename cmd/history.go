package cmd

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jayteealao/branchsync/internal/errors"
	"github.com/jayteealao/branchsync/internal/state"
	"github.com/jayteealao/branchsync/internal/tui"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past sync runs",
	Long: `Show recent sync runs for the working copy, newest first.

With --run, shows every step of one run: the branch, what it was rebased or
merged onto, the outcome, and whether it was force-pushed.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historyLimitFlag int
	historyJSONFlag  bool
	historyAllFlag   bool
	historyRunFlag   string
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "number of runs to show")
	historyCmd.Flags().BoolVar(&historyJSONFlag, "json", false, "output in JSON format")
	historyCmd.Flags().BoolVar(&historyAllFlag, "all", false, "show runs for every working copy")
	historyCmd.Flags().StringVar(&historyRunFlag, "run", "", "show the steps of the run with this ID")
}

type historyEntry struct {
	ID         string  `json:"id"`
	RepoPath   string  `json:"repo_path"`
	Status     string  `json:"status"`
	StartedAt  string  `json:"started_at"`
	FinishedAt *string `json:"finished_at,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type stepEntry struct {
	Seq           int      `json:"seq"`
	Mode          string   `json:"mode"`
	Target        string   `json:"target"`
	Source        string   `json:"source,omitempty"`
	Remote        string   `json:"remote"`
	Outcome       string   `json:"outcome"`
	Ahead         int      `json:"ahead"`
	Behind        int      `json:"behind"`
	Pushed        bool     `json:"pushed"`
	ConflictFiles []string `json:"conflict_files,omitempty"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	store, err := initStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if historyRunFlag != "" {
		return showRun(ctx, out, store, historyRunFlag, historyJSONFlag)
	}

	repoPath := cfg.RepoDir
	if historyAllFlag {
		repoPath = ""
	}
	return showRuns(ctx, out, store, repoPath, historyLimitFlag, historyJSONFlag)
}

func showRuns(ctx context.Context, w io.Writer, store state.StateStore, repoPath string, limit int, asJSON bool) error {
	runs, err := store.ListRuns(ctx, repoPath, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if asJSON {
		return outputHistoryJSON(w, runs)
	}

	if len(runs) == 0 {
		if repoPath == "" {
			fmt.Fprintln(w, "No runs found.")
		} else {
			fmt.Fprintf(w, "No runs found for %s.\n", repoPath)
		}
		return nil
	}

	outputHistoryTable(w, runs, repoPath == "")
	return nil
}

func showRun(ctx context.Context, w io.Writer, store state.StateStore, id string, asJSON bool) error {
	run, err := store.GetRun(ctx, id)
	if err != nil {
		if stderrors.Is(err, errors.ErrRunNotFound) {
			return fmt.Errorf("run %q not found", id)
		}
		return err
	}

	steps, err := store.ListStepResults(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("failed to list steps: %w", err)
	}

	if asJSON {
		return outputStepsJSON(w, steps)
	}

	fmt.Fprintf(w, "Run %s on %s: %s %s\n\n", run.ID, run.RepoPath, tui.GetStatusIcon(run.Status), run.Status)
	if run.ErrorMessage != "" {
		fmt.Fprintf(w, "Error: %s\n\n", run.ErrorMessage)
	}
	if len(steps) == 0 {
		fmt.Fprintln(w, "No steps recorded.")
		return nil
	}
	outputStepsTable(w, steps)
	return nil
}

func toHistoryEntry(r *state.Run) historyEntry {
	entry := historyEntry{
		ID:        r.ID,
		RepoPath:  r.RepoPath,
		Status:    r.Status,
		StartedAt: r.StartedAt.UTC().Format(time.RFC3339),
		Error:     r.ErrorMessage,
	}
	if r.FinishedAt != nil {
		finishedStr := r.FinishedAt.UTC().Format(time.RFC3339)
		entry.FinishedAt = &finishedStr
	}
	return entry
}

func outputHistoryJSON(w io.Writer, runs []*state.Run) error {
	entries := make([]historyEntry, 0, len(runs))
	for _, r := range runs {
		entries = append(entries, toHistoryEntry(r))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func outputHistoryTable(w io.Writer, runs []*state.Run, showRepo bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := "  RUN\tSTATUS\tSTARTED\tDURATION"
	rule := "  ---\t------\t-------\t--------"
	if showRepo {
		header += "\tREPOSITORY"
		rule += "\t----------"
	}
	fmt.Fprintln(tw, header)
	fmt.Fprintln(tw, rule)

	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = tui.FormatDuration(r.FinishedAt.Sub(r.StartedAt))
		}

		line := fmt.Sprintf("  %s\t%s %s\t%s\t%s",
			shortRunID(r.ID),
			tui.GetStatusIcon(r.Status),
			r.Status,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			duration)
		if showRepo {
			line += "\t" + r.RepoPath
		}
		fmt.Fprintln(tw, line)
	}
	tw.Flush()
}

func outputStepsJSON(w io.Writer, steps []*state.StepResult) error {
	entries := make([]stepEntry, 0, len(steps))
	for _, sr := range steps {
		entries = append(entries, stepEntry{
			Seq:           sr.Seq,
			Mode:          sr.Mode,
			Target:        sr.Target,
			Source:        sr.Source,
			Remote:        sr.Remote,
			Outcome:       sr.Outcome,
			Ahead:         sr.Ahead,
			Behind:        sr.Behind,
			Pushed:        sr.Pushed,
			ConflictFiles: sr.ConflictFiles,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func outputStepsTable(w io.Writer, steps []*state.StepResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  #\tMODE\tBRANCH\tFROM\tOUTCOME\tPUSHED\tCONFLICTS")
	fmt.Fprintln(tw, "  -\t----\t------\t----\t-------\t------\t---------")

	for _, sr := range steps {
		from := sr.Remote
		if sr.Source != "" {
			from += "/" + sr.Source
		}
		pushed := "-"
		if sr.Pushed {
			pushed = fmt.Sprintf("yes (+%d/-%d)", sr.Ahead, sr.Behind)
		}
		conflicts := "-"
		if n := len(sr.ConflictFiles); n > 0 {
			conflicts = fmt.Sprintf("%d file(s)", n)
		}

		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s %s\t%s\t%s\n",
			sr.Seq,
			sr.Mode,
			sr.Target,
			from,
			tui.GetStatusIcon(sr.Outcome),
			sr.Outcome,
			pushed,
			conflicts)
	}
	tw.Flush()
}
