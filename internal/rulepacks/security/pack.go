// Package security provides the security audit rule pack.
// It groups all security rules into a single New() function that the engine
// wires into a DefaultRuleRegistry before classification.
//
// Convention: every rule pack lives in internal/rulepacks/<domain>/pack.go
// and exposes a single New() func returning []rules.Rule.
package security

import "github.com/pankaj-dahiya-devops/cloudsweep/internal/rules"

// Name is the pack key used by the packs section of a policy file.
const Name = "security"

// New returns the default security audit rule pack.
func New() []rules.Rule {
	return []rules.Rule{
		rules.NewSecurityGroupOpenSSHRule(), // CRITICAL: SG exposes SSH/RDP to internet
		rules.NewFirewallOpenAdminRule(),    // CRITICAL: firewall rule exposes SSH/RDP
		rules.NewBucketPublicRule(),         // HIGH:     bucket lacks public access block
		rules.NewDBUnencryptedRule(),        // HIGH:     database storage not encrypted
		rules.NewIAMUserNoMFARule(),         // HIGH:     console user has no MFA device
	}
}
