// Package output renders an AuditRun as a table, JSON or a summary.
// It is a pure presentation package: it reads the run and never changes it.
package output

import (
	"fmt"
	"io"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

// Format names accepted by Render.
const (
	FormatTable   = "table"
	FormatJSON    = "json"
	FormatSummary = "summary"
)

// Render writes run to w in format.
func Render(w io.Writer, run *models.AuditRun, format string, opts TableOptions) error {
	switch format {
	case FormatTable, "":
		RenderTable(w, run, opts)
		return nil
	case FormatJSON:
		return RenderJSON(w, run)
	case FormatSummary:
		RenderSummary(w, run)
		return nil
	}
	return fmt.Errorf("unknown output format %q", format)
}
