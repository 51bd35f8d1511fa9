package models

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies the cloud (or pseudo-cloud) a resource was listed from.
type Provider string

const (
	ProviderAWS        Provider = "aws"
	ProviderGCP        Provider = "gcp"
	ProviderAzure      Provider = "azure"
	ProviderKubernetes Provider = "kubernetes"
	ProviderFixture    Provider = "fixture"
)

// ParseProvider converts s (case-insensitive) into a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProviderAWS, ProviderGCP, ProviderAzure, ProviderKubernetes, ProviderFixture:
		return p, nil
	}
	return "", fmt.Errorf("unknown provider %q; valid values: aws, gcp, azure, kubernetes, fixture", s)
}

// Kind is the provider-neutral category of a resource.
type Kind string

const (
	KindVolume        Kind = "volume"
	KindAddress       Kind = "address"
	KindInstance      Kind = "instance"
	KindFirewallRule  Kind = "firewall-rule"
	KindSecurityGroup Kind = "security-group"
	KindSnapshot      Kind = "snapshot"
	KindBucket        Kind = "bucket"
	KindDBInstance    Kind = "db-instance"
	KindLoadBalancer  Kind = "load-balancer"
	KindIAMUser       Kind = "iam-user"
)

// AllKinds lists every kind known to the engine in a fixed order.
var AllKinds = []Kind{
	KindVolume,
	KindAddress,
	KindInstance,
	KindFirewallRule,
	KindSecurityGroup,
	KindSnapshot,
	KindBucket,
	KindDBInstance,
	KindLoadBalancer,
	KindIAMUser,
}

// ParseKind converts s (case-insensitive) into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

// GlobalRegion is the region label used for resources that are not scoped
// to a region (IAM users, S3 buckets, GCP firewalls).
const GlobalRegion = "global"

// Well-known attribute keys populated by provider adapters and read by rules.
const (
	AttrAttached        = "attached"
	AttrAttachedTo      = "attached_to"
	AttrState           = "state"
	AttrStoppedAt       = "stopped_at"
	AttrInstanceType    = "instance_type"
	AttrAvgCPUPercent   = "avg_cpu_percent"
	AttrIngressCIDRs    = "ingress_cidrs"
	AttrPort            = "port"
	AttrOpenPorts       = "open_ports"
	AttrPublic          = "public"
	AttrEncrypted       = "encrypted"
	AttrMFAEnabled      = "mfa_enabled"
	AttrHasLoginProfile = "has_login_profile"
	AttrTargetCount     = "target_count"
	AttrVolumeType      = "volume_type"
	AttrEngine          = "engine"
	AttrARN             = "arn"
	AttrResourceGroup   = "resource_group"
	AttrNamespace       = "namespace"
	AttrName            = "name"
	AttrIngress         = "ingress"
)

// FlagTagKey is the tag (or label) the tag action writes onto a resource.
const FlagTagKey = "cloudsweep:flagged"

// Resource is one provider entity under audit. Adapters construct a fresh
// Resource on every listing call; nothing mutates it afterwards.
type Resource struct {
	ID         string            `json:"id"`
	Kind       Kind              `json:"kind"`
	Provider   Provider          `json:"provider"`
	Region     string            `json:"region"`
	SizeGB     *float64          `json:"size_gb,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Tags       map[string]string `json:"tags,omitempty"`
	Attributes map[string]any    `json:"attributes,omitempty"`
}

// Attr returns the raw attribute stored under key.
func (r Resource) Attr(key string) (any, bool) {
	if r.Attributes == nil {
		return nil, false
	}
	v, ok := r.Attributes[key]
	return v, ok
}

// Tag returns the tag value for key and whether it is present.
func (r Resource) Tag(key string) (string, bool) {
	if r.Tags == nil {
		return "", false
	}
	v, ok := r.Tags[key]
	return v, ok
}

// Float64 returns a pointer to v; used by adapters to populate SizeGB.
func Float64(v float64) *float64 {
	return &v
}
