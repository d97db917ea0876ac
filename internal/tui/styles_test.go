package tui

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestGetStatusStyle(t *testing.T) {
	tests := []struct {
		status   string
		expected lipgloss.Style
	}{
		{"succeeded", StatusSucceeded},
		{"clean", StatusSucceeded},
		{"resolved", StatusSucceeded},
		{"pushed", StatusSucceeded},

		{"failed", StatusFailed},
		{"aborted", StatusFailed},

		{"running", StatusRunning},
		{"conflict", StatusRunning},

		{"interrupted", StatusInactive},
		{"up-to-date", StatusInactive},

		{"", NormalStyle},
		{"some-random-status", NormalStyle},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetStatusStyle(tt.status))
		})
	}
}

func TestGetStatusIcon(t *testing.T) {
	tests := []struct {
		status   string
		expected string
	}{
		{"succeeded", "●"},
		{"clean", "●"},
		{"resolved", "◆"},
		{"failed", "✗"},
		{"aborted", "↩"},
		{"running", "◐"},
		{"interrupted", "⚠"},
		{"up-to-date", "○"},
		{"", "?"},
		{"some-random-status", "?"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetStatusIcon(tt.status))
		})
	}
}

func TestPrinter(t *testing.T) {
	t.Run("writes every level", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPrinter(&buf, true)

		p.Info(" > Checkout awox-service...")
		p.Success("   > awox-service branch is up-to-date")
		p.Error("Aborting process...")
		p.Verbose("git rebase upstream/master")

		out := buf.String()
		assert.Contains(t, out, " > Checkout awox-service...")
		assert.Contains(t, out, "awox-service branch is up-to-date")
		assert.Contains(t, out, "Aborting process...")
		assert.Contains(t, out, "git rebase upstream/master")
	})

	t.Run("verbose is silent by default", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPrinter(&buf, false)

		p.Verbose("hidden")
		assert.Empty(t, buf.String())
	})
}
