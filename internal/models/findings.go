package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Severity represents the impact level of a finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities from least to most severe.
var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// ParseSeverity converts s (case-insensitive) into a Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("invalid severity %q; valid values: low, medium, high, critical", s)
	}
	return sev, nil
}

// Rank returns the ordinal of s; 0 for unknown values.
func (s Severity) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s is at or above min.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// Action is the remediation a rule recommends for its findings.
type Action string

const (
	ActionDelete Action = "delete"
	ActionStop   Action = "stop"
	ActionTag    Action = "tag"
	ActionPatch  Action = "patch"
	ActionNone   Action = "none"
)

// ParseAction converts s (case-insensitive) into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionDelete, ActionStop, ActionTag, ActionPatch, ActionNone:
		return a, nil
	}
	return "", fmt.Errorf("invalid action %q; valid values: delete, stop, tag, patch, none", s)
}

// Destructive reports whether the action removes the resource and therefore
// needs a reversible artifact first.
func (a Action) Destructive() bool {
	return a == ActionDelete
}

// Mode selects how far an audit run goes after classification.
type Mode string

const (
	ModeReportOnly       Mode = "reportOnly"
	ModeDryRun           Mode = "dryRun"
	ModeApplyWithConfirm Mode = "applyWithConfirm"
	ModeApplyForce       Mode = "applyForce"
)

// ParseMode converts s into a Mode. Matching ignores case and dashes so
// "apply-force" and "applyforce" are accepted alongside "applyForce".
func ParseMode(s string) (Mode, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	for _, m := range []Mode{ModeReportOnly, ModeDryRun, ModeApplyWithConfirm, ModeApplyForce} {
		if strings.ToLower(string(m)) == norm {
			return m, nil
		}
	}
	return "", fmt.Errorf("invalid mode %q; valid values: reportOnly, dryRun, applyWithConfirm, applyForce", s)
}

// Finding is the result of one rule matching one resource. It is created by
// the classifier and never modified afterwards, except for the cost estimate
// which the orchestrator stamps once before anything else reads it.
type Finding struct {
	ID                   string           `json:"id"`
	RuleID               string           `json:"rule_id"`
	RuleName             string           `json:"rule_name"`
	Severity             Severity         `json:"severity"`
	Reason               string           `json:"reason"`
	Action               Action           `json:"action"`
	Resource             Resource         `json:"resource"`
	EstimatedMonthlyCost *decimal.Decimal `json:"estimated_monthly_cost,omitempty"`
	DetectedAt           time.Time        `json:"detected_at"`
}

// FindingID builds the deterministic identifier of a finding.
func FindingID(ruleID string, r Resource) string {
	return fmt.Sprintf("%s/%s/%s/%s", ruleID, r.Provider, r.Region, r.ID)
}

// ActionState is the terminal state of the executor state machine.
type ActionState string

const (
	ActionStateReported ActionState = "reported"
	ActionStateSkipped  ActionState = "skipped"
	ActionStateApplied  ActionState = "applied"
	ActionStateFailed   ActionState = "failed"
)

// ActionResult records the outcome of remediating one finding.
type ActionResult struct {
	FindingID     string      `json:"finding_id"`
	ResourceID    string      `json:"resource_id"`
	Action        Action      `json:"action"`
	State         ActionState `json:"state"`
	Attempted     bool        `json:"attempted"`
	Succeeded     bool        `json:"succeeded"`
	DryRun        bool        `json:"dry_run"`
	Error         *RunError   `json:"error,omitempty"`
	UndoReference string      `json:"undo_reference,omitempty"`
	Message       string      `json:"message,omitempty"`
	StartedAt     time.Time   `json:"started_at"`
	FinishedAt    time.Time   `json:"finished_at"`
}

// ErrorKind names a class in the run error taxonomy.
type ErrorKind string

const (
	ErrorKindConfig         ErrorKind = "ConfigError"
	ErrorKindProvider       ErrorKind = "ProviderError"
	ErrorKindPolicy         ErrorKind = "PolicyError"
	ErrorKindPrecheckFailed ErrorKind = "PrecheckFailed"
	ErrorKindPartialFailure ErrorKind = "PartialFailure"
)

// RunError is the serialisable form of a non-fatal error captured into a run.
type RunError struct {
	Kind         ErrorKind `json:"kind"`
	Reason       string    `json:"reason,omitempty"`
	Provider     Provider  `json:"provider,omitempty"`
	Region       string    `json:"region,omitempty"`
	ResourceKind Kind      `json:"resource_kind,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	RuleID       string    `json:"rule_id,omitempty"`
	Message      string    `json:"message"`
}

// Error implements error so a RunError can travel through error returns.
func (e *RunError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Reason != "" {
		b.WriteString("(" + e.Reason + ")")
	}
	if e.Region != "" {
		b.WriteString(" region=" + e.Region)
	}
	if e.ResourceKind != "" {
		b.WriteString(" kind=" + string(e.ResourceKind))
	}
	if e.ResourceID != "" {
		b.WriteString(" resource=" + e.ResourceID)
	}
	if e.RuleID != "" {
		b.WriteString(" rule=" + e.RuleID)
	}
	b.WriteString(": " + e.Message)
	return b.String()
}

// AuditRun is the aggregate produced by one orchestrator run.
type AuditRun struct {
	ID                           string          `json:"id"`
	StartedAt                    time.Time       `json:"started_at"`
	FinishedAt                   time.Time       `json:"finished_at"`
	Provider                     Provider        `json:"provider"`
	Mode                         Mode            `json:"mode"`
	PriceTableVersion            string          `json:"price_table_version"`
	RegionsScanned               []string        `json:"regions_scanned"`
	KindsScanned                 []Kind          `json:"kinds_scanned"`
	ResourcesScanned             int             `json:"resources_scanned"`
	Findings                     []Finding       `json:"findings"`
	ActionResults                []ActionResult  `json:"action_results"`
	Errors                       []RunError      `json:"errors"`
	TotalEstimatedMonthlySavings decimal.Decimal `json:"total_estimated_monthly_savings"`
}

// SeverityCounts returns the number of findings per severity.
func (r *AuditRun) SeverityCounts() map[Severity]int {
	counts := make(map[Severity]int, len(severityRank))
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}
