package rules

import (
	"testing"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/policy"
)

func TestFromPolicy_BuildsRules(t *testing.T) {
	cfg := &policy.PolicyConfig{CustomRules: []policy.CustomRule{
		{
			ID:        "BIG_GP2",
			Name:      "Large gp2 volume",
			Kinds:     []string{"volume"},
			Providers: []string{"aws"},
			Severity:  "Medium",
			Action:    "tag",
			Match: []policy.Condition{
				{Attribute: "volume_type", Equals: "gp2"},
				{SizeGBOver: 500},
			},
		},
	}}
	got, err := FromPolicy(cfg)
	if err != nil {
		t.Fatalf("FromPolicy: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 rule, got %d", len(got))
	}
	r := got[0]
	if r.ID() != "BIG_GP2" || r.Severity() != models.SeverityMedium || r.Action() != models.ActionTag {
		t.Errorf("rule = %s/%s/%s", r.ID(), r.Severity(), r.Action())
	}

	vol := models.Resource{
		ID: "vol-1", Kind: models.KindVolume, Provider: models.ProviderAWS,
		SizeGB: models.Float64(1000), Attributes: map[string]any{"volume_type": "gp2"},
	}
	if ok, err := r.Evaluate(RuleContext{Resource: vol}); err != nil || !ok {
		t.Errorf("large gp2: Evaluate = %v, %v; want true", ok, err)
	}
	vol.SizeGB = models.Float64(100)
	if ok, _ := r.Evaluate(RuleContext{Resource: vol}); ok {
		t.Error("small gp2 must not match")
	}
	if r.Target().Matches(models.Resource{Kind: models.KindVolume, Provider: models.ProviderGCP}) {
		t.Error("provider filter must exclude gcp")
	}
}

func TestFromPolicy_DefaultActionIsNone(t *testing.T) {
	got, err := FromPolicy(&policy.PolicyConfig{CustomRules: []policy.CustomRule{
		{ID: "X", Kinds: []string{"bucket"}, Severity: "low", Match: []policy.Condition{{TagMissing: "owner"}}},
	}})
	if err != nil {
		t.Fatalf("FromPolicy: %v", err)
	}
	if got[0].Action() != models.ActionNone {
		t.Errorf("action = %s; want none", got[0].Action())
	}
	if got[0].Name() != "X" {
		t.Errorf("name = %q; want the ID as fallback", got[0].Name())
	}
}

func TestFromPolicy_InvalidEntry(t *testing.T) {
	_, err := FromPolicy(&policy.PolicyConfig{CustomRules: []policy.CustomRule{
		{ID: "X", Kinds: []string{"router"}, Severity: "low"},
	}})
	if err == nil {
		t.Fatal("expected an error for an unknown kind")
	}
}

func TestFromPolicy_Nil(t *testing.T) {
	got, err := FromPolicy(nil)
	if err != nil || got != nil {
		t.Errorf("FromPolicy(nil) = %v, %v; want nil, nil", got, err)
	}
}

func TestEvalCondition(t *testing.T) {
	res := models.Resource{
		ID:         "snap-1",
		Kind:       models.KindSnapshot,
		CreatedAt:  testNow.AddDate(0, 0, -40),
		Tags:       map[string]string{"env": "prod"},
		Attributes: map[string]any{"encrypted": false, "count": 3},
	}
	rc := RuleContext{Resource: res, Now: testNow}

	cases := []struct {
		name string
		cond policy.Condition
		want bool
	}{
		{"attribute bool equals string", policy.Condition{Attribute: "encrypted", Equals: "false"}, true},
		{"attribute bool equals bool", policy.Condition{Attribute: "encrypted", Equals: false}, true},
		{"attribute number equals float", policy.Condition{Attribute: "count", Equals: 3.0}, true},
		{"attribute missing", policy.Condition{Attribute: "engine", Equals: "mysql"}, false},
		{"tag missing true", policy.Condition{TagMissing: "owner"}, true},
		{"tag missing false", policy.Condition{TagMissing: "env"}, false},
		{"tag equals", policy.Condition{Tag: "env", Value: "prod"}, true},
		{"tag differs", policy.Condition{Tag: "env", Value: "dev"}, false},
		{"tag present any value", policy.Condition{Tag: "env"}, true},
		{"older than 30", policy.Condition{OlderThanDays: 30}, true},
		{"older than 60", policy.Condition{OlderThanDays: 60}, false},
		{"size unknown", policy.Condition{SizeGBOver: 1}, false},
	}
	for _, tc := range cases {
		got, err := evalCondition(tc.cond, rc)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: got %v; want %v", tc.name, got, tc.want)
		}
	}

	if _, err := evalCondition(policy.Condition{}, rc); err == nil {
		t.Error("empty condition: expected an error")
	}
}
