// Package cost provides the cost rule pack: resources that are billed but
// unused or idle.
// New returns every cost rule in evaluation order; callers register them
// into a RuleRegistry via a loop rather than listing each rule explicitly.
//
// Adding a new cost rule:
//  1. Implement the rule in internal/rules/ following the Rule interface.
//  2. Append it to the slice returned by New().
//  3. No other files need to change.
package cost

import "github.com/pankaj-dahiya-devops/cloudsweep/internal/rules"

// Name is the pack key used by the packs section of a policy file.
const Name = "cost"

// New returns all cost rules in the order they should be evaluated.
func New() []rules.Rule {
	return []rules.Rule{
		rules.NewVolumeUnattachedRule(),
		rules.NewAddressUnassociatedRule(),
		rules.NewInstanceStoppedLongRule(),
		rules.NewInstanceIdleCPURule(),
		rules.NewSnapshotStaleRule(),
		rules.NewLBIdleRule(),
	}
}
