// Package prompt provides interactive yes/no confirmation for the operator.
package prompt

import (
	"context"
	"errors"

	"github.com/charmbracelet/huh"
)

// Confirmer asks the operator a blocking yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, title string, defaultValue bool) (bool, error)
}

// HuhConfirmer asks through an interactive terminal form.
// It waits for an answer with no timeout.
type HuhConfirmer struct {
	// Description is shown under every question when non-empty.
	Description string
}

// Ensure HuhConfirmer implements Confirmer
var _ Confirmer = (*HuhConfirmer)(nil)

// NewHuhConfirmer creates a terminal confirmer.
func NewHuhConfirmer(description string) *HuhConfirmer {
	return &HuhConfirmer{Description: description}
}

// Confirm prompts the user with title and returns their answer.
func (c *HuhConfirmer) Confirm(ctx context.Context, title string, defaultValue bool) (bool, error) {
	confirmed := defaultValue

	confirm := huh.NewConfirm().
		Title(title).
		Value(&confirmed).
		Affirmative("Yes").
		Negative("No")
	if c.Description != "" {
		confirm.Description(c.Description)
	}

	form := huh.NewForm(huh.NewGroup(confirm))
	if err := form.RunWithContext(ctx); err != nil {
		return false, err
	}

	return confirmed, nil
}

// ErrNoScriptedAnswer is returned by Scripted when it runs out of answers.
var ErrNoScriptedAnswer = errors.New("no scripted answer left")

// Scripted answers confirmations from a fixed list, in order.
type Scripted struct {
	answers []bool
	prompts []string
}

// Ensure Scripted implements Confirmer
var _ Confirmer = (*Scripted)(nil)

// NewScripted creates a Confirmer that returns answers in order.
func NewScripted(answers ...bool) *Scripted {
	return &Scripted{answers: answers}
}

// Confirm records title and returns the next scripted answer.
func (s *Scripted) Confirm(ctx context.Context, title string, defaultValue bool) (bool, error) {
	s.prompts = append(s.prompts, title)
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if len(s.answers) == 0 {
		return false, ErrNoScriptedAnswer
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

// Prompts returns every question asked so far.
func (s *Scripted) Prompts() []string {
	return s.prompts
}
