package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

// RuleRow is one line of the `sweep rules` listing.
type RuleRow struct {
	ID       string
	Pack     string
	Name     string
	Severity models.Severity
	Action   models.Action
	Kinds    []models.Kind
	Enabled  bool
}

func severityStyle(sev models.Severity) string {
	switch sev {
	case models.SeverityCritical, models.SeverityHigh:
		return pterm.FgRed.Sprint(string(sev))
	case models.SeverityMedium:
		return pterm.FgYellow.Sprint(string(sev))
	default:
		return pterm.FgBlue.Sprint(string(sev))
	}
}

// PrintRules writes the rule catalogue as a table.
func PrintRules(w io.Writer, rows []RuleRow) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No rules registered.")
		return nil
	}
	data := [][]string{
		{"ID", "Pack", "Severity", "Action", "Kinds", "Enabled", "Name"},
	}
	for _, r := range rows {
		kinds := make([]string, len(r.Kinds))
		for i, k := range r.Kinds {
			kinds[i] = string(k)
		}
		enabled := pterm.FgGreen.Sprint("yes")
		if !r.Enabled {
			enabled = pterm.FgGray.Sprint("no")
		}
		data = append(data, []string{
			pterm.FgCyan.Sprint(r.ID),
			r.Pack,
			severityStyle(r.Severity),
			string(r.Action),
			strings.Join(kinds, ","),
			enabled,
			r.Name,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

// StartSpinner shows progress on stderr while a long call runs. The caller
// stops it; a nil spinner is returned when pterm could not start one.
func StartSpinner(text string) *pterm.SpinnerPrinter {
	spinner, err := pterm.DefaultSpinner.WithWriter(os.Stderr).Start(text)
	if err != nil {
		return nil
	}
	return spinner
}

// StopSpinner ends s with a success or failure line.
func StopSpinner(s *pterm.SpinnerPrinter, err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.Fail(err.Error())
		return
	}
	_ = s.Stop()
}
