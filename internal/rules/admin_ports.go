package rules

import (
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

const (
	sgOpenSSHRuleID          = "SG_OPEN_SSH"
	firewallOpenAdminRuleID  = "FIREWALL_OPEN_ADMIN"
	adminPortsReasonTemplate = " allows SSH or RDP (port 22/3389) from the internet."
)

// adminPorts are the remote administration ports that must never be open to
// the whole internet.
var adminPorts = []int{22, 3389}

// openToWorld reports whether any ingress rule of r admits TCP traffic on an
// admin port from a world CIDR.
func openToWorld(r models.Resource) (bool, error) {
	ingress, err := ingressRules(r)
	if err != nil {
		return false, err
	}
	for _, in := range ingress {
		if !in.tcpLike() || !in.world() {
			continue
		}
		for _, port := range adminPorts {
			if in.coversPort(port) {
				return true, nil
			}
		}
	}
	return false, nil
}

// SecurityGroupOpenSSHRule flags security groups (AWS security groups, Azure
// NSGs) that expose SSH or RDP to 0.0.0.0/0 or ::/0.
type SecurityGroupOpenSSHRule struct{ meta }

func NewSecurityGroupOpenSSHRule() SecurityGroupOpenSSHRule {
	return SecurityGroupOpenSSHRule{meta{
		id:       sgOpenSSHRuleID,
		name:     "Security Group Open to SSH",
		target:   kinds(models.KindSecurityGroup),
		severity: models.SeverityCritical,
		action:   models.ActionPatch,
		reason:   "Security group {{.ID}} in {{.Region}}" + adminPortsReasonTemplate,
	}}
}

func (r SecurityGroupOpenSSHRule) Evaluate(ctx RuleContext) (bool, error) {
	return openToWorld(ctx.Resource)
}

// FirewallOpenAdminRule is the firewall-rule counterpart of
// SecurityGroupOpenSSHRule for providers that model firewalls as standalone
// rules (GCP VPC firewalls).
type FirewallOpenAdminRule struct{ meta }

func NewFirewallOpenAdminRule() FirewallOpenAdminRule {
	return FirewallOpenAdminRule{meta{
		id:       firewallOpenAdminRuleID,
		name:     "Firewall Rule Open to Admin Ports",
		target:   kinds(models.KindFirewallRule),
		severity: models.SeverityCritical,
		action:   models.ActionPatch,
		reason:   "Firewall rule {{.ID}}" + adminPortsReasonTemplate,
	}}
}

func (r FirewallOpenAdminRule) Evaluate(ctx RuleContext) (bool, error) {
	return openToWorld(ctx.Resource)
}
