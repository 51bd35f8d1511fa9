package rules

import (
	"time"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/policy"
)

// RuleContext is the sole input to Rule.Evaluate. Rules must never make
// network calls or read external state; Now is injected so age predicates
// stay deterministic.
type RuleContext struct {
	Resource models.Resource

	// Policy holds threshold overrides. May be nil; rules must treat nil as
	// "use defaults".
	Policy *policy.PolicyConfig

	Now time.Time
}

// Target selects the resources a rule applies to. An empty Providers list
// matches every provider.
type Target struct {
	Kinds     []models.Kind
	Providers []models.Provider
}

// Matches reports whether r falls within the target.
func (t Target) Matches(r models.Resource) bool {
	kindOK := false
	for _, k := range t.Kinds {
		if k == r.Kind {
			kindOK = true
			break
		}
	}
	if !kindOK {
		return false
	}
	if len(t.Providers) == 0 {
		return true
	}
	for _, p := range t.Providers {
		if p == r.Provider {
			return true
		}
	}
	return false
}

// Rule is a single named predicate over one resource.
// Rules must be stateless and safe to call concurrently.
type Rule interface {
	// ID returns the unique, stable identifier (e.g. "VOLUME_UNATTACHED").
	ID() string

	// Name returns a short human-readable rule name.
	Name() string

	Target() Target
	Severity() models.Severity

	// Action is the remediation recommended for matching resources.
	Action() models.Action

	// ReasonTemplate is a text/template rendered against ReasonData when the
	// rule matches.
	ReasonTemplate() string

	// Evaluate reports whether ctx.Resource matches. An error means the
	// resource's attributes were malformed for this rule.
	Evaluate(ctx RuleContext) (bool, error)
}

// RuleRegistry manages the set of active rules.
type RuleRegistry interface {
	// Register adds a rule to the registry. Panics on duplicate ID.
	Register(rule Rule)

	// All returns all registered rules in registration order.
	All() []Rule
}

// meta carries the static half of a built-in rule.
type meta struct {
	id       string
	name     string
	target   Target
	severity models.Severity
	action   models.Action
	reason   string
}

func (m meta) ID() string                { return m.id }
func (m meta) Name() string              { return m.name }
func (m meta) Target() Target            { return m.target }
func (m meta) Severity() models.Severity { return m.severity }
func (m meta) Action() models.Action     { return m.action }
func (m meta) ReasonTemplate() string    { return m.reason }

func kinds(k ...models.Kind) Target { return Target{Kinds: k} }
