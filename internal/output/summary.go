package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

// topFindingsLimit caps the "Top findings by cost" list.
const topFindingsLimit = 5

// RenderSummary writes a short human-oriented digest of run: scope, totals,
// severity counts, the costliest findings and action outcomes.
//
// Example output:
//
//	Audit run 6f1c… (aws, reportOnly)
//	Regions: eu-west-1, us-east-1
//	Resources scanned: 42   Findings: 3   Est. monthly savings: $13.60 (price table sample)
//
//	By severity: critical=1 high=0 medium=1 low=1
//
//	Top findings by cost:
//	  $10.00  VOLUME_UNATTACHED  vol-1
func RenderSummary(w io.Writer, run *models.AuditRun) {
	fmt.Fprintf(w, "Audit run %s (%s, %s)\n", run.ID, run.Provider, run.Mode)
	if len(run.RegionsScanned) > 0 {
		fmt.Fprintf(w, "Regions: %s\n", strings.Join(run.RegionsScanned, ", "))
	}
	fmt.Fprintf(w, "Resources scanned: %d   Findings: %d   Est. monthly savings: $%s",
		run.ResourcesScanned, len(run.Findings), run.TotalEstimatedMonthlySavings.StringFixed(2))
	if run.PriceTableVersion != "" {
		fmt.Fprintf(w, " (price table %s)", run.PriceTableVersion)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	counts := run.SeverityCounts()
	fmt.Fprintf(w, "By severity: critical=%d high=%d medium=%d low=%d\n",
		counts[models.SeverityCritical], counts[models.SeverityHigh],
		counts[models.SeverityMedium], counts[models.SeverityLow])

	if top := topByCost(run.Findings, topFindingsLimit); len(top) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Top findings by cost:")
		for _, f := range top {
			fmt.Fprintf(w, "  %-9s  %-10s  %-22s  %s\n",
				formatCost(f.EstimatedMonthlyCost), f.Severity, f.RuleID, f.Resource.ID)
		}
	}

	if len(run.ActionResults) > 0 {
		byState := make(map[models.ActionState]int)
		for _, r := range run.ActionResults {
			byState[r.State]++
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Actions: applied=%d failed=%d skipped=%d reported=%d\n",
			byState[models.ActionStateApplied], byState[models.ActionStateFailed],
			byState[models.ActionStateSkipped], byState[models.ActionStateReported])
		for _, r := range run.ActionResults {
			if r.UndoReference != "" {
				fmt.Fprintf(w, "  undo %s: %s\n", r.ResourceID, r.UndoReference)
			}
		}
	}

	RenderErrors(w, run.Errors)
}

// topByCost returns up to n findings with a cost estimate, most expensive
// first; ties keep finding order.
func topByCost(findings []models.Finding, n int) []models.Finding {
	var priced []models.Finding
	for _, f := range findings {
		if f.EstimatedMonthlyCost != nil {
			priced = append(priced, f)
		}
	}
	sort.SliceStable(priced, func(i, j int) bool {
		return costOf(priced[i]).GreaterThan(costOf(priced[j]))
	})
	if len(priced) > n {
		priced = priced[:n]
	}
	return priced
}

func costOf(f models.Finding) decimal.Decimal {
	if f.EstimatedMonthlyCost == nil {
		return decimal.Zero
	}
	return *f.EstimatedMonthlyCost
}
