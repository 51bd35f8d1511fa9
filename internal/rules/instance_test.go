package rules

import (
	"testing"
	"time"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/policy"
)

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func instance(attrs map[string]any) models.Resource {
	return models.Resource{ID: "i-1", Kind: models.KindInstance, Provider: models.ProviderAWS, Region: "us-east-1", Attributes: attrs}
}

func TestInstanceStoppedLongRule_Evaluate(t *testing.T) {
	r := NewInstanceStoppedLongRule()
	cases := []struct {
		name  string
		attrs map[string]any
		match bool
	}{
		{"stopped 60 days", map[string]any{"state": "stopped", "stopped_at": "2024-04-02T00:00:00Z"}, true},
		{"stopped 10 days", map[string]any{"state": "stopped", "stopped_at": "2024-05-22T00:00:00Z"}, false},
		{"running", map[string]any{"state": "running", "stopped_at": "2024-01-01T00:00:00Z"}, false},
		{"stopped without timestamp", map[string]any{"state": "stopped"}, false},
		{"time value", map[string]any{"state": "STOPPED", "stopped_at": testNow.AddDate(0, 0, -31)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Evaluate(RuleContext{Resource: instance(tc.attrs), Now: testNow})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.match {
				t.Errorf("match = %v; want %v", got, tc.match)
			}
		})
	}
}

func TestInstanceStoppedLongRule_ThresholdOverride(t *testing.T) {
	cfg := &policy.PolicyConfig{Rules: map[string]policy.RuleConfig{
		"INSTANCE_STOPPED_LONG": {Params: map[string]float64{"max_stopped_days": 5}},
	}}
	res := instance(map[string]any{"state": "stopped", "stopped_at": "2024-05-22T00:00:00Z"})
	got, err := NewInstanceStoppedLongRule().Evaluate(RuleContext{Resource: res, Policy: cfg, Now: testNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("expected match with max_stopped_days=5")
	}
}

func TestInstanceStoppedLongRule_BadTimestamp(t *testing.T) {
	res := instance(map[string]any{"state": "stopped", "stopped_at": "last tuesday"})
	if _, err := NewInstanceStoppedLongRule().Evaluate(RuleContext{Resource: res, Now: testNow}); err == nil {
		t.Fatal("expected an error for an unparseable stopped_at")
	}
}

func TestInstanceIdleCPURule_Evaluate(t *testing.T) {
	r := NewInstanceIdleCPURule()
	cases := []struct {
		name  string
		attrs map[string]any
		match bool
	}{
		{"idle running", map[string]any{"state": "running", "avg_cpu_percent": 1.5}, true},
		{"busy running", map[string]any{"state": "running", "avg_cpu_percent": 40.0}, false},
		{"no metric", map[string]any{"state": "running"}, false},
		{"stopped", map[string]any{"state": "stopped", "avg_cpu_percent": 0.0}, false},
		{"int metric without state", map[string]any{"avg_cpu_percent": 2}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Evaluate(RuleContext{Resource: instance(tc.attrs), Now: testNow})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.match {
				t.Errorf("match = %v; want %v", got, tc.match)
			}
		})
	}
}

func TestInstanceIdleCPURule_MalformedMetric(t *testing.T) {
	res := instance(map[string]any{"state": "running", "avg_cpu_percent": []any{1}})
	if _, err := NewInstanceIdleCPURule().Evaluate(RuleContext{Resource: res}); err == nil {
		t.Fatal("expected an error for a non-numeric avg_cpu_percent")
	}
}

func TestSnapshotStaleRule_Evaluate(t *testing.T) {
	r := NewSnapshotStaleRule()
	snap := func(created time.Time) models.Resource {
		return models.Resource{ID: "snap-1", Kind: models.KindSnapshot, CreatedAt: created}
	}
	cases := []struct {
		name  string
		res   models.Resource
		match bool
	}{
		{"old", snap(testNow.AddDate(0, 0, -120)), true},
		{"young", snap(testNow.AddDate(0, 0, -10)), false},
		{"unknown creation", snap(time.Time{}), false},
	}
	for _, tc := range cases {
		got, err := r.Evaluate(RuleContext{Resource: tc.res, Now: testNow})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.match {
			t.Errorf("%s: match = %v; want %v", tc.name, got, tc.match)
		}
	}
}
