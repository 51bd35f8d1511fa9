package engine

import (
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/policy"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/rulepacks/cost"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/rulepacks/security"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/rules"
)

// CustomPack is the pack name reported for rules declared in a policy file.
const CustomPack = "custom"

// PackedRule pairs a rule with the pack it belongs to.
type PackedRule struct {
	Pack string
	Rule rules.Rule
}

// BuiltinRules returns every built-in rule: the cost pack, then the
// security pack.
func BuiltinRules() []PackedRule {
	var out []PackedRule
	for _, r := range cost.New() {
		out = append(out, PackedRule{Pack: cost.Name, Rule: r})
	}
	for _, r := range security.New() {
		out = append(out, PackedRule{Pack: security.Name, Rule: r})
	}
	return out
}

// BuiltinRuleIDs returns the IDs of BuiltinRules in order. Registering them
// panics if two packs ever ship the same ID.
func BuiltinRuleIDs() []string {
	registry := rules.NewDefaultRuleRegistry()
	for _, pr := range BuiltinRules() {
		registry.Register(pr.Rule)
	}
	return registry.IDs()
}

// CatalogRules returns the built-in rules followed by pol's custom rules.
func CatalogRules(pol *policy.PolicyConfig) ([]PackedRule, error) {
	all := BuiltinRules()
	custom, err := rules.FromPolicy(pol)
	if err != nil {
		return nil, &auditerr.ConfigError{Field: "policy", Err: err}
	}
	for _, r := range custom {
		all = append(all, PackedRule{Pack: CustomPack, Rule: r})
	}
	return all, nil
}

// ActiveRules registers every rule pol leaves enabled and returns them in
// registration order. A registry panic on a duplicate ID cannot happen for
// a validated policy since custom IDs may not collide with built-ins.
func ActiveRules(pol *policy.PolicyConfig) ([]rules.Rule, error) {
	catalog, err := CatalogRules(pol)
	if err != nil {
		return nil, err
	}
	registry := rules.NewDefaultRuleRegistry()
	for _, pr := range catalog {
		if policy.RuleEnabled(pol, pr.Pack, pr.Rule.ID()) {
			registry.Register(pr.Rule)
		}
	}
	return registry.All(), nil
}
