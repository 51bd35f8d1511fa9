package policy

import (
	"testing"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

func TestFailThreshold_DefaultsToCritical(t *testing.T) {
	if got := FailThreshold(nil); got != models.SeverityCritical {
		t.Errorf("nil cfg: got %q; want critical", got)
	}
	if got := FailThreshold(&PolicyConfig{}); got != models.SeverityCritical {
		t.Errorf("empty enforcement: got %q; want critical", got)
	}
}

func TestFailThreshold_InvalidSeverityFallsBack(t *testing.T) {
	cfg := &PolicyConfig{Enforcement: EnforcementConfig{FailOnSeverity: "BOGUS"}}
	if got := FailThreshold(cfg); got != models.SeverityCritical {
		t.Errorf("got %q; want critical", got)
	}
}

func TestFailThreshold_CaseInsensitive(t *testing.T) {
	cfg := &PolicyConfig{Enforcement: EnforcementConfig{FailOnSeverity: "HIGH"}}
	if got := FailThreshold(cfg); got != models.SeverityHigh {
		t.Errorf("got %q; want high", got)
	}
}

func TestShouldFail_NoFindings(t *testing.T) {
	cfg := &PolicyConfig{Enforcement: EnforcementConfig{FailOnSeverity: "low"}}
	if ShouldFail(nil, cfg) {
		t.Error("empty findings slice must return false")
	}
}

func TestShouldFail_ThresholdBoundaries(t *testing.T) {
	cases := []struct {
		threshold string
		severity  models.Severity
		want      bool
	}{
		{"high", models.SeverityCritical, true},
		{"high", models.SeverityHigh, true},
		{"high", models.SeverityMedium, false},
		{"", models.SeverityHigh, false},
		{"", models.SeverityCritical, true},
		{"low", models.SeverityLow, true},
	}
	for _, tc := range cases {
		cfg := &PolicyConfig{Enforcement: EnforcementConfig{FailOnSeverity: tc.threshold}}
		findings := []models.Finding{{Severity: tc.severity}}
		if got := ShouldFail(findings, cfg); got != tc.want {
			t.Errorf("threshold=%q severity=%q: got %v; want %v", tc.threshold, tc.severity, got, tc.want)
		}
	}
}
