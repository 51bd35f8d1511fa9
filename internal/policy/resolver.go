package policy

import (
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

// RuleEnabled reports whether ruleID from pack should run. A rule-level
// setting wins over its pack; anything not mentioned is enabled.
func RuleEnabled(cfg *PolicyConfig, pack, ruleID string) bool {
	if cfg == nil {
		return true
	}
	if rc, ok := cfg.Rules[ruleID]; ok && rc.Enabled != nil {
		return *rc.Enabled
	}
	if p, ok := cfg.Packs[pack]; ok {
		return p.Enabled
	}
	return true
}

// ApplyPolicy drops findings of disabled rules and applies severity
// overrides. Findings are copied; the input slice is not modified.
func ApplyPolicy(findings []models.Finding, cfg *PolicyConfig) []models.Finding {
	if cfg == nil {
		return findings
	}

	result := make([]models.Finding, 0, len(findings))
	for _, f := range findings {
		if ruleCfg, ok := cfg.Rules[f.RuleID]; ok && ruleCfg.Enabled != nil && !*ruleCfg.Enabled {
			continue
		}

		f.Severity = EffectiveSeverity(cfg, f.RuleID, f.Severity)
		result = append(result, f)
	}
	return result
}

// EffectiveSeverity returns the policy's severity override for ruleID, or
// base when there is none or it does not parse.
func EffectiveSeverity(cfg *PolicyConfig, ruleID string, base models.Severity) models.Severity {
	if cfg == nil {
		return base
	}
	if sev, err := models.ParseSeverity(cfg.Rules[ruleID].Severity); err == nil {
		return sev
	}
	return base
}

// Excluded reports whether r carries one of the policy's exclude_tags.
func Excluded(cfg *PolicyConfig, r models.Resource) bool {
	if cfg == nil {
		return false
	}
	for key, want := range cfg.ExcludeTags {
		got, ok := r.Tags[key]
		if !ok {
			continue
		}
		if want == "" || want == "*" || want == got {
			return true
		}
	}
	return false
}
