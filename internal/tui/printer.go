package tui

import (
	"fmt"
	"io"
	"os"
)

// Printer writes leveled, colored progress lines for a sync run.
type Printer struct {
	out     io.Writer
	verbose bool
}

// NewPrinter creates a Printer writing to out. A nil out writes to stdout.
func NewPrinter(out io.Writer, verbose bool) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{out: out, verbose: verbose}
}

// Info prints a progress line.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.out, InfoStyle.Render(msg))
}

// Success prints a completed-action line.
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.out, SuccessStyle.Render(msg))
}

// Error prints a failure line.
func (p *Printer) Error(msg string) {
	fmt.Fprintln(p.out, ErrorStyle.Render(msg))
}

// Verbose prints msg only when verbose output is enabled.
func (p *Printer) Verbose(msg string) {
	if !p.verbose {
		return
	}
	fmt.Fprintln(p.out, VerboseStyle.Render(msg))
}
