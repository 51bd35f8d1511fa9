package rules

import (
	"strings"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/policy"
)

const (
	instanceStoppedLongRuleID = "INSTANCE_STOPPED_LONG"
	instanceIdleCPURuleID     = "INSTANCE_IDLE_CPU"

	defaultMaxStoppedDays = 30.0
	defaultCPUThreshold   = 5.0
)

// InstanceStoppedLongRule flags instances that have been stopped for longer
// than max_stopped_days. Stopped instances still pay for their volumes and
// reserved addresses, so they are tagged for an owner to decide.
type InstanceStoppedLongRule struct{ meta }

func NewInstanceStoppedLongRule() InstanceStoppedLongRule {
	return InstanceStoppedLongRule{meta{
		id:       instanceStoppedLongRuleID,
		name:     "Long-Stopped Instance",
		target:   kinds(models.KindInstance),
		severity: models.SeverityLow,
		action:   models.ActionTag,
		reason:   `Instance {{.ID}} in {{.Region}} has been stopped since {{index .Attr "stopped_at"}}.`,
	}}
}

func (r InstanceStoppedLongRule) Evaluate(ctx RuleContext) (bool, error) {
	state, _, err := stringAttr(ctx.Resource, models.AttrState)
	if err != nil {
		return false, err
	}
	if !strings.EqualFold(state, "stopped") {
		return false, nil
	}
	stoppedAt, present, err := timeAttr(ctx.Resource, models.AttrStoppedAt)
	if err != nil || !present {
		return false, err
	}
	maxDays := policy.GetThreshold(r.id, "max_stopped_days", defaultMaxStoppedDays, ctx.Policy)
	return ageDays(ctx.Now, stoppedAt) > maxDays, nil
}

// InstanceIdleCPURule flags running instances whose average CPU utilisation
// stays below cpu_threshold percent.
type InstanceIdleCPURule struct{ meta }

func NewInstanceIdleCPURule() InstanceIdleCPURule {
	return InstanceIdleCPURule{meta{
		id:       instanceIdleCPURuleID,
		name:     "Idle Instance",
		target:   kinds(models.KindInstance),
		severity: models.SeverityLow,
		action:   models.ActionStop,
		reason:   `Instance {{.ID}} in {{.Region}} averages {{index .Attr "avg_cpu_percent"}}% CPU.`,
	}}
}

func (r InstanceIdleCPURule) Evaluate(ctx RuleContext) (bool, error) {
	state, hasState, err := stringAttr(ctx.Resource, models.AttrState)
	if err != nil {
		return false, err
	}
	if hasState && !strings.EqualFold(state, "running") {
		return false, nil
	}
	cpu, present, err := numberAttr(ctx.Resource, models.AttrAvgCPUPercent)
	if err != nil || !present {
		return false, err
	}
	threshold := policy.GetThreshold(r.id, "cpu_threshold", defaultCPUThreshold, ctx.Policy)
	return cpu < threshold, nil
}
