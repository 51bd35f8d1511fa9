// Package ui holds the interactive terminal pieces of the CLI: remediation
// prompts, the rule listing and progress spinners.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

// TerminalConfirmer asks the operator through a pterm confirm prompt.
// Prompts are serialised so concurrent remediations never interleave.
type TerminalConfirmer struct {
	mu sync.Mutex
}

// NewTerminalConfirmer returns a confirmer for an interactive terminal.
func NewTerminalConfirmer() *TerminalConfirmer {
	return &TerminalConfirmer{}
}

// Confirm implements executor.Confirmer.
func (c *TerminalConfirmer) Confirm(ctx context.Context, f models.Finding) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return pterm.DefaultInteractiveConfirm.
		WithDefaultValue(false).
		WithDefaultText(Question(f)).
		Show()
}

// LineConfirmer reads y/n answers line by line. It serves pipes and tests
// where no terminal is attached. EOF counts as "no".
type LineConfirmer struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewLineConfirmer prompts on out and reads answers from in.
func NewLineConfirmer(in io.Reader, out io.Writer) *LineConfirmer {
	return &LineConfirmer{in: bufio.NewReader(in), out: out}
}

// Confirm implements executor.Confirmer.
func (c *LineConfirmer) Confirm(ctx context.Context, f models.Finding) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(c.out, "%s [y/N]: ", Question(f))
	line, err := c.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Question is the prompt shown for one finding.
func Question(f models.Finding) string {
	verb := string(f.Action)
	if verb != "" {
		verb = strings.ToUpper(verb[:1]) + verb[1:]
	}
	return fmt.Sprintf("%s %s %s in %s (%s, %s)?",
		verb, f.Resource.Kind, f.Resource.ID, f.Resource.Region, f.RuleID, f.Severity)
}
