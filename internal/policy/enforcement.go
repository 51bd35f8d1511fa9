package policy

import (
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

// DefaultFailOnSeverity is used when the policy sets no enforcement block.
const DefaultFailOnSeverity = models.SeverityCritical

// FailThreshold returns the severity at or above which an unresolved
// finding fails the run. It is safe to call with cfg == nil.
func FailThreshold(cfg *PolicyConfig) models.Severity {
	if cfg == nil || cfg.Enforcement.FailOnSeverity == "" {
		return DefaultFailOnSeverity
	}
	sev, err := models.ParseSeverity(cfg.Enforcement.FailOnSeverity)
	if err != nil {
		return DefaultFailOnSeverity
	}
	return sev
}

// ShouldFail reports whether any finding has a severity at or above the
// enforcement threshold.
func ShouldFail(findings []models.Finding, cfg *PolicyConfig) bool {
	threshold := FailThreshold(cfg)
	for _, f := range findings {
		if f.Severity.AtLeast(threshold) {
			return true
		}
	}
	return false
}
