package rules

import (
	"testing"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

func TestBucketPublicRule_Evaluate(t *testing.T) {
	r := NewBucketPublicRule()
	for _, tc := range []struct {
		attrs map[string]any
		match bool
	}{
		{map[string]any{"public": true}, true},
		{map[string]any{"public": false}, false},
		{nil, false},
	} {
		got, err := r.Evaluate(RuleContext{Resource: models.Resource{ID: "logs", Kind: models.KindBucket, Attributes: tc.attrs}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tc.match {
			t.Errorf("attrs=%v: match = %v; want %v", tc.attrs, got, tc.match)
		}
	}
}

func TestDBUnencryptedRule_Evaluate(t *testing.T) {
	r := NewDBUnencryptedRule()
	if r.Action() != models.ActionNone {
		t.Errorf("action = %s; want none", r.Action())
	}
	for _, tc := range []struct {
		attrs map[string]any
		match bool
	}{
		{map[string]any{"encrypted": false}, true},
		{map[string]any{"encrypted": true}, false},
		{map[string]any{}, false},
	} {
		got, err := r.Evaluate(RuleContext{Resource: models.Resource{ID: "db-1", Kind: models.KindDBInstance, Attributes: tc.attrs}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tc.match {
			t.Errorf("attrs=%v: match = %v; want %v", tc.attrs, got, tc.match)
		}
	}
}

func TestIAMUserNoMFARule_Evaluate(t *testing.T) {
	r := NewIAMUserNoMFARule()
	for _, tc := range []struct {
		name  string
		attrs map[string]any
		match bool
	}{
		{"console user without mfa", map[string]any{"mfa_enabled": false, "has_login_profile": true}, true},
		{"programmatic user without mfa", map[string]any{"mfa_enabled": false, "has_login_profile": false}, false},
		{"unknown login profile", map[string]any{"mfa_enabled": false}, true},
		{"mfa enabled", map[string]any{"mfa_enabled": true, "has_login_profile": true}, false},
		{"no data", nil, false},
	} {
		got, err := r.Evaluate(RuleContext{Resource: models.Resource{ID: "alice", Kind: models.KindIAMUser, Attributes: tc.attrs}})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.match {
			t.Errorf("%s: match = %v; want %v", tc.name, got, tc.match)
		}
	}
}

func TestLBIdleRule_Evaluate(t *testing.T) {
	r := NewLBIdleRule()
	for _, tc := range []struct {
		attrs map[string]any
		match bool
	}{
		{map[string]any{"target_count": 0}, true},
		{map[string]any{"target_count": 3}, false},
		{map[string]any{"target_count": 0.0}, true},
		{nil, false},
	} {
		got, err := r.Evaluate(RuleContext{Resource: models.Resource{ID: "lb-1", Kind: models.KindLoadBalancer, Attributes: tc.attrs}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tc.match {
			t.Errorf("attrs=%v: match = %v; want %v", tc.attrs, got, tc.match)
		}
	}
}
