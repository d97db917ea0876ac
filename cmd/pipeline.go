package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/jayteealao/branchsync/internal/orchestrator"
	"github.com/jayteealao/branchsync/internal/tui"
	"github.com/spf13/cobra"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Print the configured pipeline",
	Long: `Print the steps a sync run executes, in order.

The pipeline comes from the "pipeline" key of the config file. Without one,
the built-in pipeline is used.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

var pipelineJSONFlag bool

func init() {
	rootCmd.AddCommand(pipelineCmd)

	pipelineCmd.Flags().BoolVar(&pipelineJSONFlag, "json", false, "output in JSON format")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if pipelineJSONFlag {
		return outputPipelineJSON(out, *cfg.Pipeline)
	}
	outputPipelineTable(out, *cfg.Pipeline)
	return nil
}

func outputPipelineJSON(w io.Writer, p orchestrator.Pipeline) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func outputPipelineTable(w io.Writer, p orchestrator.Pipeline) {
	fmt.Fprintf(w, "Fetch %s %s\n\n", p.UpstreamRemote, p.UpstreamBranch)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(tui.ColorMuted)).
		Headers("#", "MODE", "BRANCH", "ONTO", "PUSH").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			return s
		})

	n := 0
	for _, step := range p.Steps {
		n++
		push := "if diverged"
		if step.Mode == orchestrator.ModeMerge {
			push = "never"
		}
		t.Row(fmt.Sprint(n), string(step.Mode), step.Target, step.RemoteOrDefault()+"/"+step.Source, push)
	}

	if integ := p.Integration; integ != nil {
		n++
		t.Row(fmt.Sprint(n), "reset", integ.Branch, integ.Base, "")
		for i, source := range integ.Merges {
			n++
			push := ""
			if i == len(integ.Merges)-1 {
				push = "if diverged"
			}
			t.Row(fmt.Sprint(n), string(orchestrator.ModeMerge), integ.Branch, integ.RemoteOrDefault()+"/"+source, push)
		}
	}

	fmt.Fprintln(w, t.Render())

	if p.Integration != nil {
		fmt.Fprintf(w, "\nIntegration branch %s is rebuilt from %s with: %s\n",
			p.Integration.Branch, p.Integration.Base, strings.Join(p.Integration.Merges, ", "))
	}
}
