package policy

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

// validPacks is the set of rule pack names a policy may toggle.
var validPacks = map[string]struct{}{
	"cost":     {},
	"security": {},
}

// Validate checks cfg for semantic correctness and returns every problem
// found. An empty slice means the config is valid.
//
// Checks performed:
//   - version must be 1
//   - pack names must be cost or security
//   - rule IDs must appear in availableRuleIDs, and severity overrides must parse
//   - custom rules need a unique ID, known kinds and providers, a valid
//     severity and action, and at least one well-formed condition
//   - enforcement.fail_on_severity must parse if set
func Validate(cfg *PolicyConfig, availableRuleIDs []string) []error {
	if cfg == nil {
		return []error{fmt.Errorf("policy config is nil")}
	}

	knownIDs := make(map[string]struct{}, len(availableRuleIDs))
	for _, id := range availableRuleIDs {
		knownIDs[id] = struct{}{}
	}

	var errs []error

	if cfg.Version != 1 {
		errs = append(errs, fmt.Errorf("version: unsupported value %d; must be 1", cfg.Version))
	}

	for name := range cfg.Packs {
		if _, ok := validPacks[name]; !ok {
			errs = append(errs, fmt.Errorf("packs.%s: unknown pack; valid values: cost, security", name))
		}
	}

	customIDs := make(map[string]struct{}, len(cfg.CustomRules))
	for i, cr := range cfg.CustomRules {
		errs = append(errs, validateCustomRule(i, cr, knownIDs, customIDs)...)
		if cr.ID != "" {
			customIDs[cr.ID] = struct{}{}
		}
	}

	for ruleID, rcfg := range cfg.Rules {
		_, builtin := knownIDs[ruleID]
		_, custom := customIDs[ruleID]
		if !builtin && !custom {
			errs = append(errs, fmt.Errorf("rules.%s: unknown rule ID", ruleID))
		}
		if rcfg.Severity != "" {
			if _, err := models.ParseSeverity(rcfg.Severity); err != nil {
				errs = append(errs, fmt.Errorf("rules.%s.severity: %w", ruleID, err))
			}
		}
	}

	if s := cfg.Enforcement.FailOnSeverity; s != "" {
		if _, err := models.ParseSeverity(s); err != nil {
			errs = append(errs, fmt.Errorf("enforcement.fail_on_severity: %w", err))
		}
	}

	return errs
}

func validateCustomRule(i int, cr CustomRule, builtin, seen map[string]struct{}) []error {
	prefix := fmt.Sprintf("custom_rules[%d]", i)
	if cr.ID != "" {
		prefix = fmt.Sprintf("custom_rules.%s", cr.ID)
	}

	var errs []error
	switch _, dupBuiltin := builtin[cr.ID]; {
	case cr.ID == "":
		errs = append(errs, fmt.Errorf("%s.id: required", prefix))
	case dupBuiltin:
		errs = append(errs, fmt.Errorf("%s.id: collides with a built-in rule", prefix))
	default:
		if _, dup := seen[cr.ID]; dup {
			errs = append(errs, fmt.Errorf("%s.id: duplicate custom rule", prefix))
		}
	}

	if len(cr.Kinds) == 0 {
		errs = append(errs, fmt.Errorf("%s.kinds: at least one kind is required", prefix))
	}
	for _, k := range cr.Kinds {
		if _, err := models.ParseKind(k); err != nil {
			errs = append(errs, fmt.Errorf("%s.kinds: %w", prefix, err))
		}
	}
	for _, p := range cr.Providers {
		if _, err := models.ParseProvider(p); err != nil {
			errs = append(errs, fmt.Errorf("%s.providers: %w", prefix, err))
		}
	}
	if _, err := models.ParseSeverity(cr.Severity); err != nil {
		errs = append(errs, fmt.Errorf("%s.severity: %w", prefix, err))
	}
	if cr.Action != "" {
		if _, err := models.ParseAction(cr.Action); err != nil {
			errs = append(errs, fmt.Errorf("%s.action: %w", prefix, err))
		}
	}

	if len(cr.Match) == 0 {
		errs = append(errs, fmt.Errorf("%s.match: at least one condition is required", prefix))
	}
	for j, c := range cr.Match {
		if n := c.forms(); n != 1 {
			errs = append(errs, fmt.Errorf("%s.match[%d]: exactly one of attribute, tag_missing, tag, older_than_days, size_gb_over must be set (got %d)", prefix, j, n))
		}
	}
	return errs
}
