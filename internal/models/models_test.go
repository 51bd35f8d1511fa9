package models

import (
	"strings"
	"testing"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"low", SeverityLow, false},
		{"HIGH", SeverityHigh, false},
		{" critical ", SeverityCritical, false},
		{"urgent", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSeverity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSeverity(%q) error = %v; wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSeverity(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestSeverity_AtLeast(t *testing.T) {
	if !SeverityCritical.AtLeast(SeverityHigh) {
		t.Error("critical should be at least high")
	}
	if !SeverityMedium.AtLeast(SeverityMedium) {
		t.Error("a severity is at least itself")
	}
	if SeverityLow.AtLeast(SeverityMedium) {
		t.Error("low should not be at least medium")
	}
	if Severity("bogus").Rank() != 0 {
		t.Error("unknown severity should rank 0")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"reportOnly", ModeReportOnly},
		{"dry-run", ModeDryRun},
		{"APPLYWITHCONFIRM", ModeApplyWithConfirm},
		{"apply-force", ModeApplyForce},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if err != nil {
			t.Errorf("ParseMode(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
	if _, err := ParseMode("yolo"); err == nil {
		t.Error("ParseMode(yolo) should fail")
	}
}

func TestParseAction(t *testing.T) {
	for _, in := range []string{"delete", "Stop", "tag", "patch", "none"} {
		if _, err := ParseAction(in); err != nil {
			t.Errorf("ParseAction(%q) unexpected error: %v", in, err)
		}
	}
	if _, err := ParseAction("shred"); err == nil {
		t.Error("ParseAction(shred) should fail")
	}
	if !ActionDelete.Destructive() || ActionStop.Destructive() {
		t.Error("only delete is destructive")
	}
}

func TestParseProviderAndKind(t *testing.T) {
	if p, err := ParseProvider("AWS"); err != nil || p != ProviderAWS {
		t.Errorf("ParseProvider(AWS) = %q, %v", p, err)
	}
	if _, err := ParseProvider("oracle"); err == nil {
		t.Error("ParseProvider(oracle) should fail")
	}
	for _, k := range AllKinds {
		if got, err := ParseKind(string(k)); err != nil || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}
	if _, err := ParseKind("queue"); err == nil {
		t.Error("ParseKind(queue) should fail")
	}
}

func TestFindingID_Deterministic(t *testing.T) {
	r := Resource{ID: "vol-1", Provider: ProviderAWS, Region: "us-east-1"}
	got := FindingID("VOLUME_UNATTACHED", r)
	if got != "VOLUME_UNATTACHED/aws/us-east-1/vol-1" {
		t.Errorf("FindingID = %q", got)
	}
	if FindingID("VOLUME_UNATTACHED", r) != got {
		t.Error("FindingID must be stable")
	}
}

func TestResource_AttrAndTag(t *testing.T) {
	var empty Resource
	if _, ok := empty.Attr("x"); ok {
		t.Error("nil attributes should report missing")
	}
	if _, ok := empty.Tag("x"); ok {
		t.Error("nil tags should report missing")
	}

	r := Resource{
		Tags:       map[string]string{"env": "prod"},
		Attributes: map[string]any{AttrAttached: false},
	}
	if v, ok := r.Attr(AttrAttached); !ok || v != false {
		t.Errorf("Attr(attached) = %v, %v", v, ok)
	}
	if v, ok := r.Tag("env"); !ok || v != "prod" {
		t.Errorf("Tag(env) = %q, %v", v, ok)
	}
}

func TestRunError_Error(t *testing.T) {
	e := &RunError{
		Kind:         ErrorKindPartialFailure,
		Reason:       "timeout",
		Region:       "eu-west-1",
		ResourceKind: KindVolume,
		Message:      "listing failed",
	}
	got := e.Error()
	for _, want := range []string{"PartialFailure(timeout)", "region=eu-west-1", "kind=volume", ": listing failed"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q; missing %q", got, want)
		}
	}
}

func TestAuditRun_SeverityCounts(t *testing.T) {
	run := &AuditRun{Findings: []Finding{
		{Severity: SeverityHigh},
		{Severity: SeverityHigh},
		{Severity: SeverityLow},
	}}
	counts := run.SeverityCounts()
	if counts[SeverityHigh] != 2 || counts[SeverityLow] != 1 || counts[SeverityCritical] != 0 {
		t.Errorf("SeverityCounts = %v", counts)
	}
}
