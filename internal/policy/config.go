package policy

// PolicyConfig is the parsed form of a sweep.yaml policy file.
type PolicyConfig struct {
	Version     int                   `yaml:"version"`
	Packs       map[string]PackConfig `yaml:"packs"`
	Rules       map[string]RuleConfig `yaml:"rules"`
	CustomRules []CustomRule          `yaml:"custom_rules"`
	Enforcement EnforcementConfig     `yaml:"enforcement"`

	// ExcludeTags skips resources carrying any of these tags before
	// classification. An empty value or "*" matches any value of the key.
	ExcludeTags map[string]string `yaml:"exclude_tags"`
}

// PackConfig toggles a whole rule pack (cost, security).
type PackConfig struct {
	Enabled bool `yaml:"enabled"`
}

type RuleConfig struct {
	Enabled  *bool              `yaml:"enabled,omitempty"`
	Severity string             `yaml:"severity,omitempty"`
	Params   map[string]float64 `yaml:"params,omitempty"`
}

type EnforcementConfig struct {
	FailOnSeverity string `yaml:"fail_on_severity,omitempty"`
}

// CustomRule is a declarative rule: it matches when every condition holds.
type CustomRule struct {
	ID        string      `yaml:"id"`
	Name      string      `yaml:"name"`
	Kinds     []string    `yaml:"kinds"`
	Providers []string    `yaml:"providers,omitempty"`
	Severity  string      `yaml:"severity"`
	Action    string      `yaml:"action"`
	Reason    string      `yaml:"reason,omitempty"`
	Match     []Condition `yaml:"match"`
}

// Condition is one predicate of a CustomRule. Exactly one of its forms must
// be set: Attribute with Equals, TagMissing, Tag with Value, OlderThanDays or
// SizeGBOver.
type Condition struct {
	Attribute string `yaml:"attribute,omitempty"`
	Equals    any    `yaml:"equals,omitempty"`

	TagMissing string `yaml:"tag_missing,omitempty"`

	Tag   string `yaml:"tag,omitempty"`
	Value string `yaml:"value,omitempty"`

	OlderThanDays float64 `yaml:"older_than_days,omitempty"`
	SizeGBOver    float64 `yaml:"size_gb_over,omitempty"`
}

// forms counts how many predicate forms c sets.
func (c Condition) forms() int {
	n := 0
	if c.Attribute != "" {
		n++
	}
	if c.TagMissing != "" {
		n++
	}
	if c.Tag != "" {
		n++
	}
	if c.OlderThanDays > 0 {
		n++
	}
	if c.SizeGBOver > 0 {
		n++
	}
	return n
}
