package rules

import (
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

const lbIdleRuleID = "LB_IDLE"

// LBIdleRule flags load balancers with no registered targets. An idle load
// balancer is billed hourly regardless of traffic.
type LBIdleRule struct{ meta }

func NewLBIdleRule() LBIdleRule {
	return LBIdleRule{meta{
		id:       lbIdleRuleID,
		name:     "Idle Load Balancer",
		target:   kinds(models.KindLoadBalancer),
		severity: models.SeverityMedium,
		action:   models.ActionDelete,
		reason:   "Load balancer {{.ID}} in {{.Region}} has no registered targets.",
	}}
}

func (r LBIdleRule) Evaluate(ctx RuleContext) (bool, error) {
	count, present, err := numberAttr(ctx.Resource, models.AttrTargetCount)
	if err != nil || !present {
		return false, err
	}
	return count == 0, nil
}
