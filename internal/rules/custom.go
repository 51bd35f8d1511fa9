package rules

import (
	"fmt"
	"strings"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/policy"
)

// CustomRule is a declarative rule loaded from the custom_rules section of a
// policy file. It matches when every condition holds.
type CustomRule struct {
	meta
	conditions []policy.Condition
}

// FromPolicy builds the custom rules declared in cfg. cfg is expected to have
// passed policy.Validate; the first malformed entry is still reported as an
// error rather than silently skipped.
func FromPolicy(cfg *policy.PolicyConfig) ([]Rule, error) {
	if cfg == nil {
		return nil, nil
	}
	out := make([]Rule, 0, len(cfg.CustomRules))
	for _, cr := range cfg.CustomRules {
		rule, err := newCustomRule(cr)
		if err != nil {
			return nil, fmt.Errorf("custom rule %q: %w", cr.ID, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

func newCustomRule(cr policy.CustomRule) (CustomRule, error) {
	var target Target
	for _, k := range cr.Kinds {
		kind, err := models.ParseKind(k)
		if err != nil {
			return CustomRule{}, err
		}
		target.Kinds = append(target.Kinds, kind)
	}
	for _, p := range cr.Providers {
		prov, err := models.ParseProvider(p)
		if err != nil {
			return CustomRule{}, err
		}
		target.Providers = append(target.Providers, prov)
	}
	sev, err := models.ParseSeverity(cr.Severity)
	if err != nil {
		return CustomRule{}, err
	}
	action := models.ActionNone
	if cr.Action != "" {
		if action, err = models.ParseAction(cr.Action); err != nil {
			return CustomRule{}, err
		}
	}
	name := cr.Name
	if name == "" {
		name = cr.ID
	}
	reason := cr.Reason
	if reason == "" {
		reason = "{{.Kind}} {{.ID}} matches " + strings.ReplaceAll(name, "{{", "") + "."
	}
	return CustomRule{
		meta: meta{
			id:       cr.ID,
			name:     name,
			target:   target,
			severity: sev,
			action:   action,
			reason:   reason,
		},
		conditions: cr.Match,
	}, nil
}

func (r CustomRule) Evaluate(ctx RuleContext) (bool, error) {
	for i, c := range r.conditions {
		ok, err := evalCondition(c, ctx)
		if err != nil {
			return false, fmt.Errorf("match[%d]: %w", i, err)
		}
		if !ok {
			return false, nil
		}
	}
	return len(r.conditions) > 0, nil
}

func evalCondition(c policy.Condition, ctx RuleContext) (bool, error) {
	res := ctx.Resource
	switch {
	case c.Attribute != "":
		got, ok := res.Attr(c.Attribute)
		if !ok || got == nil {
			return false, nil
		}
		return valuesEqual(got, c.Equals), nil
	case c.TagMissing != "":
		_, ok := res.Tag(c.TagMissing)
		return !ok, nil
	case c.Tag != "":
		got, ok := res.Tag(c.Tag)
		return ok && (c.Value == "" || got == c.Value), nil
	case c.OlderThanDays > 0:
		return !res.CreatedAt.IsZero() && ageDays(ctx.Now, res.CreatedAt) > c.OlderThanDays, nil
	case c.SizeGBOver > 0:
		return res.SizeGB != nil && *res.SizeGB > c.SizeGBOver, nil
	}
	return false, fmt.Errorf("condition sets no predicate")
}

// valuesEqual compares an attribute with a YAML scalar. Numbers compare by
// value whatever their Go type; everything else compares by its printed form
// so that equals: "true" matches a boolean attribute.
func valuesEqual(got, want any) bool {
	if _, isString := got.(string); !isString {
		if g, err := toFloat(got); err == nil {
			if w, err := toFloat(want); err == nil {
				return g == w
			}
		}
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}
