// Package awsprovider implements the provider adapter for AWS on top of the
// AWS SDK v2. Listing is read-only; remediation calls live in remediate.go.
package awsprovider

import (
	"context"
	"fmt"
	"time"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers/aws/common"
)

// defaultCPULookbackDays is the CloudWatch window used to average instance
// CPU utilisation.
const defaultCPULookbackDays = 14

// Adapter lists and remediates AWS resources for one profile.
type Adapter struct {
	provider common.AWSClientProvider
	profile  *common.ProfileConfig

	cpuLookbackDays int
	now             func() time.Time
}

// Option customises an Adapter.
type Option func(*Adapter)

// WithCPULookbackDays sets the CloudWatch averaging window for instances.
func WithCPULookbackDays(days int) Option {
	return func(a *Adapter) {
		if days > 0 {
			a.cpuLookbackDays = days
		}
	}
}

// WithClock overrides the clock used for metric windows and snapshot names.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// New loads profile through provider and returns an adapter for it.
func New(ctx context.Context, provider common.AWSClientProvider, profile string, opts ...Option) (*Adapter, error) {
	pc, err := provider.LoadProfile(ctx, profile)
	if err != nil {
		return nil, err
	}
	return NewWithProfile(provider, pc, opts...), nil
}

// NewWithProfile returns an adapter for an already loaded profile.
func NewWithProfile(provider common.AWSClientProvider, profile *common.ProfileConfig, opts ...Option) *Adapter {
	a := &Adapter{
		provider:        provider,
		profile:         profile,
		cpuLookbackDays: defaultCPULookbackDays,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Provider() models.Provider { return models.ProviderAWS }

// Kinds lists the supported kinds. S3 buckets and IAM users are account-wide.
func (a *Adapter) Kinds() []providers.KindSpec {
	return []providers.KindSpec{
		{Kind: models.KindVolume},
		{Kind: models.KindAddress},
		{Kind: models.KindInstance},
		{Kind: models.KindSecurityGroup},
		{Kind: models.KindSnapshot},
		{Kind: models.KindDBInstance},
		{Kind: models.KindLoadBalancer},
		{Kind: models.KindBucket, Global: true},
		{Kind: models.KindIAMUser, Global: true},
	}
}

// Regions returns the regions enabled for the profile's account.
func (a *Adapter) Regions(ctx context.Context) ([]string, error) {
	regions, err := a.provider.GetActiveRegions(ctx, a.profile)
	if err != nil {
		return nil, common.WrapError(err, "DescribeRegions", "", "", "")
	}
	return regions, nil
}

// AccountID returns the account the adapter operates on.
func (a *Adapter) AccountID() string { return a.profile.AccountID }

// ListResources dispatches to the per-kind collector and deduplicates the
// result.
func (a *Adapter) ListResources(ctx context.Context, kind models.Kind, filter providers.Filter) ([]models.Resource, error) {
	region := filter.Region
	if region == models.GlobalRegion {
		region = ""
	}
	clients := a.provider.ClientsForRegion(a.profile, region)
	if region == "" {
		region = a.profile.Region
	}

	var (
		out []models.Resource
		err error
	)
	switch kind {
	case models.KindVolume:
		out, err = collectVolumes(ctx, clients.EC2, region)
	case models.KindAddress:
		out, err = collectAddresses(ctx, clients.EC2, region)
	case models.KindInstance:
		out, err = collectInstances(ctx, clients.EC2, clients.CloudWatch, region, a.metricWindow())
	case models.KindSecurityGroup:
		out, err = collectSecurityGroups(ctx, clients.EC2, region)
	case models.KindSnapshot:
		out, err = collectSnapshots(ctx, clients.EC2, region)
	case models.KindDBInstance:
		out, err = collectDBInstances(ctx, clients.RDS, region)
	case models.KindLoadBalancer:
		out, err = collectLoadBalancers(ctx, clients.ELBv2, region)
	case models.KindBucket:
		out, err = collectBuckets(ctx, clients.S3)
	case models.KindIAMUser:
		out, err = collectIAMUsers(ctx, clients.IAM)
	default:
		return nil, fmt.Errorf("aws %s: %w", kind, providers.ErrUnsupportedKind)
	}
	if err != nil {
		return nil, err
	}
	return providers.Dedupe(out), nil
}

// metricWindow returns the [start, end) CloudWatch window for averages.
func (a *Adapter) metricWindow() [2]time.Time {
	end := a.now().UTC()
	return [2]time.Time{end.AddDate(0, 0, -a.cpuLookbackDays), end}
}

// arnFor returns the ARN stored on res or builds the EC2 ARN for it.
func (a *Adapter) arnFor(res models.Resource) string {
	if v, ok := res.Attr(models.AttrARN); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	var typ string
	switch res.Kind {
	case models.KindVolume:
		typ = "volume"
	case models.KindInstance:
		typ = "instance"
	case models.KindSecurityGroup:
		typ = "security-group"
	case models.KindAddress:
		typ = "elastic-ip"
	default:
		typ = string(res.Kind)
	}
	if res.Kind == models.KindSnapshot {
		return fmt.Sprintf("arn:aws:ec2:%s::snapshot/%s", res.Region, res.ID)
	}
	return fmt.Sprintf("arn:aws:ec2:%s:%s:%s/%s", res.Region, a.profile.AccountID, typ, res.ID)
}
