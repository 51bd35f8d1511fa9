package rules

import (
	"testing"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
)

func sg(attrs map[string]any) models.Resource {
	return models.Resource{ID: "sg-1", Kind: models.KindSecurityGroup, Provider: models.ProviderAWS, Region: "us-east-1", Attributes: attrs}
}

func TestSecurityGroupOpenSSHRule_Evaluate(t *testing.T) {
	r := NewSecurityGroupOpenSSHRule()
	cases := []struct {
		name  string
		attrs map[string]any
		match bool
	}{
		{
			name:  "flat cidrs and port 22",
			attrs: map[string]any{"ingress_cidrs": []any{"0.0.0.0/0"}, "port": 22},
			match: true,
		},
		{
			name:  "camel case flat cidrs",
			attrs: map[string]any{"ingressCidrs": []string{"::/0"}, "port": 3389},
			match: true,
		},
		{
			name:  "flat private cidr",
			attrs: map[string]any{"ingress_cidrs": []any{"10.0.0.0/8"}, "port": 22},
			match: false,
		},
		{
			name:  "open_ports list",
			attrs: map[string]any{"ingress_cidrs": []any{"0.0.0.0/0"}, "open_ports": []any{80.0, 443.0, 3389.0}},
			match: true,
		},
		{
			name: "structured range covering 22",
			attrs: map[string]any{"ingress": []any{
				providers.IngressEntry("tcp", 0, 1024, []string{"0.0.0.0/0"}),
			}},
			match: true,
		},
		{
			name: "structured all protocols",
			attrs: map[string]any{"ingress": []any{
				providers.IngressEntry("-1", 0, 65535, []string{"::/0"}),
			}},
			match: true,
		},
		{
			name: "structured udp only",
			attrs: map[string]any{"ingress": []any{
				providers.IngressEntry("udp", 0, 65535, []string{"0.0.0.0/0"}),
			}},
			match: false,
		},
		{
			name: "structured https only",
			attrs: map[string]any{"ingress": []any{
				providers.IngressEntry("tcp", 443, 443, []string{"0.0.0.0/0"}),
			}},
			match: false,
		},
		{
			name:  "no ingress",
			attrs: nil,
			match: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Evaluate(RuleContext{Resource: sg(tc.attrs)})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.match {
				t.Errorf("match = %v; want %v", got, tc.match)
			}
		})
	}
}

func TestSecurityGroupOpenSSHRule_Malformed(t *testing.T) {
	cases := map[string]map[string]any{
		"ingress not a list":    {"ingress": "0.0.0.0/0"},
		"entry missing port":    {"ingress": []any{map[string]any{"protocol": "tcp", "cidrs": []any{"0.0.0.0/0"}}}},
		"cidrs not strings":     {"ingress_cidrs": []any{1, 2}, "port": 22},
		"port not a number":     {"ingress_cidrs": []any{"0.0.0.0/0"}, "port": "ssh"},
		"entry not an object":   {"ingress": []any{"tcp/22"}},
		"open_ports not a list": {"ingress_cidrs": []any{"0.0.0.0/0"}, "open_ports": 22},
	}
	for name, attrs := range cases {
		if _, err := NewSecurityGroupOpenSSHRule().Evaluate(RuleContext{Resource: sg(attrs)}); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestFirewallOpenAdminRule_TargetsFirewallRulesOnly(t *testing.T) {
	r := NewFirewallOpenAdminRule()
	fw := models.Resource{ID: "allow-ssh", Kind: models.KindFirewallRule, Provider: models.ProviderGCP}
	if !r.Target().Matches(fw) {
		t.Error("expected firewall-rule to be targeted")
	}
	if r.Target().Matches(sg(nil)) {
		t.Error("security-group must not be targeted by FIREWALL_OPEN_ADMIN")
	}
	fw.Attributes = map[string]any{"ingress": []any{
		providers.IngressEntry("tcp", 3389, 3389, []string{"0.0.0.0/0"}),
	}}
	got, err := r.Evaluate(RuleContext{Resource: fw})
	if err != nil || !got {
		t.Errorf("Evaluate = %v, %v; want true, nil", got, err)
	}
	if r.Severity() != models.SeverityCritical {
		t.Errorf("severity = %s; want critical", r.Severity())
	}
}
