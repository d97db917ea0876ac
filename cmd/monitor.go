package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jayteealao/branchsync/internal/tui"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Launch the TUI dashboard",
	Long: `Launch an interactive terminal dashboard of sync runs.

The dashboard shows:
- Recent runs and their status
- The steps of a selected run, with conflicts and pushes
- Real-time updates while a sync is running elsewhere

Navigation:
  ↑/↓     Navigate runs
  Enter   View run steps
  Esc     Go back
  r       Refresh
  q       Quit`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

var (
	monitorRefreshFlag time.Duration
	monitorAllFlag     bool
)

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().DurationVar(&monitorRefreshFlag, "refresh", 5*time.Second, "refresh interval")
	monitorCmd.Flags().BoolVar(&monitorAllFlag, "all", false, "show runs for every working copy")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	store, err := initStore()
	if err != nil {
		return err
	}
	defer store.Close()

	repoPath := cfg.RepoDir
	if monitorAllFlag {
		repoPath = ""
	}

	model := tui.NewModel(cmd.Context(), store, repoPath, monitorRefreshFlag)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	return nil
}
