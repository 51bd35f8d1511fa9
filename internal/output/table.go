package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

// ANSI color codes for severity output (used when Colored=true).
const (
	ansiReset   = "\033[0m"
	ansiBoldRed = "\033[1;31m"
	ansiRed     = "\033[0;31m"
	ansiYellow  = "\033[0;33m"
	ansiBlue    = "\033[0;34m"
)

// TableOptions controls how RenderTable renders.
type TableOptions struct {
	// Colored wraps severity labels with ANSI codes. Default false (CI-safe).
	Colored bool

	// LocationLabel is the column header for the region column.
	// Defaults to "REGION". Use "NAMESPACE" for Kubernetes audits.
	LocationLabel string
}

// ColorSeverity wraps a severity string with ANSI codes when colored is true.
// When colored is false the string is returned unchanged (CI-safe default).
func ColorSeverity(sev models.Severity, colored bool) string {
	code := severityColor(sev)
	if !colored || code == "" {
		return string(sev)
	}
	return code + string(sev) + ansiReset
}

func severityColor(sev models.Severity) string {
	switch sev {
	case models.SeverityCritical:
		return ansiBoldRed
	case models.SeverityHigh:
		return ansiRed
	case models.SeverityMedium:
		return ansiYellow
	case models.SeverityLow:
		return ansiBlue
	}
	return ""
}

// ShortenMessage truncates msg to at most max runes, appending "..." when truncated.
// max is treated as at least 4 to guarantee space for the ellipsis.
func ShortenMessage(msg string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max-3]) + "..."
}

// severityCell returns the severity padded to width characters.
// When colored, ANSI codes wrap only the text; trailing padding spaces are plain
// so subsequent columns stay visually aligned regardless of terminal ANSI support.
func severityCell(sev models.Severity, width int, colored bool) string {
	text := string(sev)
	code := severityColor(sev)
	if !colored || code == "" {
		return fmt.Sprintf("%-*s", width, text)
	}
	spaces := width - len(text)
	if spaces < 0 {
		spaces = 0
	}
	return code + text + ansiReset + strings.Repeat(" ", spaces)
}

// truncateField shortens s to at most max runes for ID/label columns.
// A single-char ellipsis replaces the last rune when truncation occurs.
func truncateField(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// formatCost renders a monthly cost, or "-" when unknown.
func formatCost(c *decimal.Decimal) string {
	if c == nil {
		return "-"
	}
	return "$" + c.StringFixed(2)
}

// actionCell describes what happened to a finding: the recorded outcome when
// the executor ran, otherwise the recommended action.
func actionCell(f models.Finding, results map[string]models.ActionResult) string {
	r, ok := results[f.ID]
	if !ok {
		return string(f.Action)
	}
	return string(f.Action) + ":" + string(r.State)
}

func resultsByFinding(run *models.AuditRun) map[string]models.ActionResult {
	out := make(map[string]models.ActionResult, len(run.ActionResults))
	for _, r := range run.ActionResults {
		out[r.FindingID] = r
	}
	return out
}

// RenderTable writes a formatted findings table for run to w, followed by the
// errors section when the run recorded any.
// The separator line width is derived from the header row so all rows align.
//
// Column order:
//
//	RESOURCE ID  REGION  KIND  SEVERITY  RULE  REASON  COST/MO  ACTION
func RenderTable(w io.Writer, run *models.AuditRun, opts TableOptions) {
	if opts.LocationLabel == "" {
		opts.LocationLabel = "REGION"
	}

	if len(run.Findings) == 0 {
		fmt.Fprintln(w, "No findings.")
		RenderErrors(w, run.Errors)
		return
	}

	// Fixed column display widths.
	const (
		wResource = 30
		wLocation = 15
		wKind     = 14
		wSeverity = 10
		wRule     = 22
		wReason   = 55
		wCost     = 10
	)

	header := fmt.Sprintf("%-*s  %-*s  %-*s  %-*s  %-*s  %-*s  %-*s  %s",
		wResource, "RESOURCE ID",
		wLocation, opts.LocationLabel,
		wKind, "KIND",
		wSeverity, "SEVERITY",
		wRule, "RULE",
		wReason, "REASON",
		wCost, "COST/MO",
		"ACTION",
	)
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	results := resultsByFinding(run)
	for _, f := range run.Findings {
		var rb strings.Builder
		rb.WriteString(fmt.Sprintf("%-*s", wResource, truncateField(f.Resource.ID, wResource)))
		rb.WriteString(fmt.Sprintf("  %-*s", wLocation, truncateField(f.Resource.Region, wLocation)))
		rb.WriteString(fmt.Sprintf("  %-*s", wKind, truncateField(string(f.Resource.Kind), wKind)))
		rb.WriteString("  " + severityCell(f.Severity, wSeverity, opts.Colored))
		rb.WriteString(fmt.Sprintf("  %-*s", wRule, truncateField(f.RuleID, wRule)))
		rb.WriteString(fmt.Sprintf("  %-*s", wReason, ShortenMessage(f.Reason, wReason)))
		rb.WriteString(fmt.Sprintf("  %-*s", wCost, formatCost(f.EstimatedMonthlyCost)))
		rb.WriteString("  " + actionCell(f, results))
		fmt.Fprintln(w, strings.TrimRight(rb.String(), " "))
	}

	RenderErrors(w, run.Errors)
}

// RenderErrors writes the "Errors encountered" section. Nothing is written
// for an empty slice.
func RenderErrors(w io.Writer, errs []models.RunError) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Errors encountered (%d):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(w, "  - %s\n", e.Error())
	}
}
