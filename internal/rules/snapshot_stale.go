package rules

import (
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/policy"
)

const (
	snapshotStaleRuleID = "SNAPSHOT_STALE"
	defaultMaxAgeDays   = 90.0
)

// SnapshotStaleRule flags snapshots older than max_age_days.
type SnapshotStaleRule struct{ meta }

func NewSnapshotStaleRule() SnapshotStaleRule {
	return SnapshotStaleRule{meta{
		id:       snapshotStaleRuleID,
		name:     "Stale Snapshot",
		target:   kinds(models.KindSnapshot),
		severity: models.SeverityLow,
		action:   models.ActionDelete,
		reason:   "Snapshot {{.ID}} in {{.Region}} is {{.AgeDays}} days old.",
	}}
}

func (r SnapshotStaleRule) Evaluate(ctx RuleContext) (bool, error) {
	if ctx.Resource.CreatedAt.IsZero() {
		return false, nil
	}
	maxAge := policy.GetThreshold(r.id, "max_age_days", defaultMaxAgeDays, ctx.Policy)
	return ageDays(ctx.Now, ctx.Resource.CreatedAt) > maxAge, nil
}
