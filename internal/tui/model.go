package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jayteealao/branchsync/internal/state"
)

// View represents the current view.
type View int

const (
	ViewList View = iota
	ViewDetail
)

// runLimit caps how many runs the dashboard loads per refresh.
const runLimit = 50

// RunSource is the slice of the run history the dashboard reads.
type RunSource interface {
	ListRuns(ctx context.Context, repoPath string, limit int) ([]*state.Run, error)
	ListStepResults(ctx context.Context, runID string) ([]*state.StepResult, error)
}

// Model is the Bubble Tea model for the run history dashboard.
type Model struct {
	ctx           context.Context
	cancel        context.CancelFunc
	store         RunSource
	repoPath      string
	runs          []*state.Run
	steps         []*state.StepResult
	table         table.Model
	currentView   View
	selectedIndex int
	width         int
	height        int
	refreshTicker time.Duration
	lastRefresh   time.Time
	err           error
	quitting      bool
}

// KeyMap defines the keybindings.
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Back    key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

var keys = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "steps"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "backspace"),
		key.WithHelp("esc", "back"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Messages
type tickMsg time.Time
type runsMsg []*state.Run
type stepsMsg struct {
	runID string
	steps []*state.StepResult
}
type errMsg struct{ err error }

// NewModel creates a dashboard over store. An empty repoPath shows runs for every working copy.
func NewModel(ctx context.Context, store RunSource, repoPath string, refreshInterval time.Duration) Model {
	ctx, cancel := context.WithCancel(ctx)

	columns := []table.Column{
		{Title: "RUN", Width: 10},
		{Title: "STARTED", Width: 20},
		{Title: "DURATION", Width: 10},
		{Title: "STATUS", Width: 15},
		{Title: "REPOSITORY", Width: 30},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("15")).
		Background(ColorPrimary).
		Bold(false)
	t.SetStyles(s)

	return Model{
		ctx:           ctx,
		cancel:        cancel,
		store:         store,
		repoPath:      repoPath,
		table:         t,
		currentView:   ViewList,
		refreshTicker: refreshInterval,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadRuns(),
		m.tick(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.cancel()
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Refresh):
			return m, m.refresh()

		case key.Matches(msg, keys.Enter):
			if m.currentView == ViewList && len(m.runs) > 0 {
				m.selectedIndex = m.table.Cursor()
				m.currentView = ViewDetail
				m.steps = nil
				return m, m.loadSteps(m.runs[m.selectedIndex].ID)
			}
			return m, nil

		case key.Matches(msg, keys.Back):
			if m.currentView == ViewDetail {
				m.currentView = ViewList
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width - 4)
		m.table.SetHeight(msg.Height - 10)

	case tickMsg:
		return m, tea.Batch(m.refresh(), m.tick())

	case runsMsg:
		m.runs = msg
		m.lastRefresh = time.Now()
		m.err = nil
		m.updateTable()
		if m.selectedIndex >= len(m.runs) {
			m.selectedIndex = 0
			m.currentView = ViewList
		}
		return m, nil

	case stepsMsg:
		if run := m.selectedRun(); run != nil && run.ID == msg.runID {
			m.steps = msg.steps
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	if m.currentView == ViewList {
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.err != nil {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	switch m.currentView {
	case ViewDetail:
		return m.detailView()
	default:
		return m.listView()
	}
}

func (m *Model) listView() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("branchsync runs") + "\n\n")
	if len(m.runs) == 0 {
		b.WriteString(InfoStyle.Render("No runs recorded yet.") + "\n\n")
	} else {
		b.WriteString(m.table.View() + "\n\n")
	}

	b.WriteString(HelpStyle.Render(fmt.Sprintf(
		"[↑↓] Navigate  [Enter] Steps  [r] Refresh  [q] Quit  |  Last refresh: %s",
		m.lastRefresh.Format("15:04:05"),
	)))
	return b.String()
}

func (m *Model) detailView() string {
	run := m.selectedRun()
	if run == nil {
		return "No run selected"
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(fmt.Sprintf("Run %s", shortID(run.ID))) + "\n\n")
	b.WriteString(LabelStyle.Render("Repository:") + ValueStyle.Render(run.RepoPath) + "\n")
	b.WriteString(LabelStyle.Render("Status:") + GetStatusStyle(run.Status).Render(run.Status) + "\n")
	b.WriteString(LabelStyle.Render("Started:") + ValueStyle.Render(run.StartedAt.Local().Format("2006-01-02 15:04:05")) + "\n")
	if run.FinishedAt != nil {
		b.WriteString(LabelStyle.Render("Duration:") + ValueStyle.Render(FormatDuration(run.FinishedAt.Sub(run.StartedAt))) + "\n")
	}
	if run.ErrorMessage != "" {
		b.WriteString(LabelStyle.Render("Error:") + StatusFailed.Render(run.ErrorMessage) + "\n")
	}
	b.WriteString("\n")

	if m.steps == nil {
		b.WriteString(InfoStyle.Render("Loading steps...") + "\n\n")
	} else if len(m.steps) == 0 {
		b.WriteString(InfoStyle.Render("No steps recorded.") + "\n\n")
	} else {
		b.WriteString(LabelStyle.Render("Steps:") + "\n")
		for _, sr := range m.steps {
			b.WriteString(FormatStep(sr) + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render("[Esc] Back  [r] Refresh  [q] Quit"))
	return b.String()
}

// FormatStep renders one step result as a single dashboard line.
func FormatStep(sr *state.StepResult) string {
	style := GetStatusStyle(sr.Outcome)

	var what string
	switch sr.Mode {
	case "push":
		what = fmt.Sprintf("push %s to %s", sr.Target, sr.Remote)
	default:
		what = fmt.Sprintf("%s %s onto %s/%s", sr.Mode, sr.Target, sr.Remote, sr.Source)
	}

	line := fmt.Sprintf("  %s %-48s %s",
		style.Render(GetStatusIcon(sr.Outcome)),
		ValueStyle.Render(what),
		style.Render(sr.Outcome),
	)
	if sr.Pushed {
		line += SuccessStyle.Render(fmt.Sprintf("  pushed (+%d/-%d)", sr.Ahead, sr.Behind))
	}
	if len(sr.ConflictFiles) > 0 {
		line += StatusRunning.Render(fmt.Sprintf("  %d conflicted: %s", len(sr.ConflictFiles), strings.Join(sr.ConflictFiles, ", ")))
	}
	return line
}

func (m *Model) selectedRun() *state.Run {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.runs) {
		return nil
	}
	return m.runs[m.selectedIndex]
}

func (m *Model) updateTable() {
	rows := make([]table.Row, len(m.runs))
	for i, r := range m.runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = FormatDuration(r.FinishedAt.Sub(r.StartedAt))
		}
		rows[i] = table.Row{
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			GetStatusIcon(r.Status) + " " + r.Status,
			r.RepoPath,
		}
	}
	m.table.SetRows(rows)
}

// FormatDuration renders d rounded to the second, or milliseconds below one second.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(time.Second).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refreshTicker, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refresh() tea.Cmd {
	if m.currentView == ViewDetail {
		if run := m.selectedRun(); run != nil {
			return tea.Batch(m.loadRuns(), m.loadSteps(run.ID))
		}
	}
	return m.loadRuns()
}

func (m Model) loadRuns() tea.Cmd {
	return func() tea.Msg {
		runs, err := m.store.ListRuns(m.ctx, m.repoPath, runLimit)
		if err != nil {
			return errMsg{err}
		}
		return runsMsg(runs)
	}
}

func (m Model) loadSteps(runID string) tea.Cmd {
	return func() tea.Msg {
		steps, err := m.store.ListStepResults(m.ctx, runID)
		if err != nil {
			return errMsg{err}
		}
		if steps == nil {
			steps = []*state.StepResult{}
		}
		return stepsMsg{runID: runID, steps: steps}
	}
}
