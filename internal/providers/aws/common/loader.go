package common

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"gopkg.in/ini.v1"
)

// DefaultAWSClientProvider is the production implementation of
// AWSClientProvider. It reads credentials from the standard AWS shared config
// and credentials files using the AWS SDK v2.
//
// Region-scoped client sets are cached so one audit run builds at most one
// set of clients per region.
type DefaultAWSClientProvider struct {
	factory ClientFactory

	mu    sync.Mutex
	cache map[string]*ClientSet
}

// NewDefaultAWSClientProvider returns a provider backed by the real AWS SDK.
func NewDefaultAWSClientProvider() *DefaultAWSClientProvider {
	return NewDefaultAWSClientProviderWithFactory(NewClientSet)
}

// NewDefaultAWSClientProviderWithFactory returns a provider that uses f to
// create its client sets. Pass a fake factory in tests.
func NewDefaultAWSClientProviderWithFactory(f ClientFactory) *DefaultAWSClientProvider {
	return &DefaultAWSClientProvider{factory: f, cache: make(map[string]*ClientSet)}
}

// LoadProfile loads the AWS SDK config for the named profile and returns a
// ProfileConfig including the resolved account ID.
func (p *DefaultAWSClientProvider) LoadProfile(ctx context.Context, profile string) (*ProfileConfig, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS profile %q: %w", profileDisplayName(profile), err)
	}

	// Fall back to us-east-1 when the profile has no region configured so
	// that all SDK clients can be constructed.
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	clients := p.factory(cfg)

	accountID, err := resolveAccountID(ctx, clients.STS)
	if err != nil {
		return nil, fmt.Errorf("resolve account ID for profile %q: %w", profileDisplayName(profile), err)
	}

	return &ProfileConfig{
		ProfileName: profileDisplayName(profile),
		AccountID:   accountID,
		Region:      cfg.Region,
		Config:      cfg,
		Clients:     clients,
	}, nil
}

// GetActiveRegions returns all AWS regions that are enabled (opted-in) for
// the account associated with cfg.
func (p *DefaultAWSClientProvider) GetActiveRegions(ctx context.Context, cfg *ProfileConfig) ([]string, error) {
	out, err := cfg.Clients.EC2.DescribeRegions(ctx, &ec2.DescribeRegionsInput{
		// AllRegions false returns only regions the account has opted into.
		AllRegions: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("describe regions for profile %q: %w", cfg.ProfileName, err)
	}

	regions := make([]string, 0, len(out.Regions))
	for _, r := range out.Regions {
		if r.RegionName != nil {
			regions = append(regions, *r.RegionName)
		}
	}
	return regions, nil
}

// ConfigForRegion returns a copy of cfg.Config with Region set to region.
func (p *DefaultAWSClientProvider) ConfigForRegion(cfg *ProfileConfig, region string) aws.Config {
	regional := cfg.Config
	regional.Region = region
	return regional
}

// ClientsForRegion returns the cached client set for region, building it on
// first use. The home region reuses cfg.Clients.
func (p *DefaultAWSClientProvider) ClientsForRegion(cfg *ProfileConfig, region string) *ClientSet {
	if region == "" || region == cfg.Region {
		return cfg.Clients
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := cfg.ProfileName + "/" + region
	if cs, ok := p.cache[key]; ok {
		return cs
	}
	cs := p.factory(p.ConfigForRegion(cfg, region))
	p.cache[key] = cs
	return cs
}

// profileDisplayName returns a human-readable profile identifier. An empty
// string (the default profile) is shown as "default".
func profileDisplayName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}

// resolveAccountID calls STS GetCallerIdentity to retrieve the AWS account ID
// for the credentials loaded in stsClient.
func resolveAccountID(ctx context.Context, stsClient STSClient) (string, error) {
	out, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("STS GetCallerIdentity: %w", err)
	}
	if out.Account == nil {
		return "", fmt.Errorf("STS GetCallerIdentity returned nil account")
	}
	return aws.ToString(out.Account), nil
}

// DiscoverProfileNames returns the deduplicated profile names declared in the
// shared credentials and config files. AWS_SHARED_CREDENTIALS_FILE and
// AWS_CONFIG_FILE override the ~/.aws defaults, as they do for the SDK.
func DiscoverProfileNames() ([]string, error) {
	credPath := os.Getenv("AWS_SHARED_CREDENTIALS_FILE")
	cfgPath := os.Getenv("AWS_CONFIG_FILE")
	if credPath == "" || cfgPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		if credPath == "" {
			credPath = filepath.Join(home, ".aws", "credentials")
		}
		if cfgPath == "" {
			cfgPath = filepath.Join(home, ".aws", "config")
		}
	}
	return profileNamesFrom(credPath, cfgPath)
}

// profileNamesFrom merges the profile sections of a credentials file and a
// config file. Missing files contribute nothing.
func profileNamesFrom(credentialsPath, configPath string) ([]string, error) {
	credProfiles, err := profileSections(credentialsPath, false)
	if err != nil {
		return nil, err
	}
	cfgProfiles, err := profileSections(configPath, true)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var all []string
	for _, name := range append(credProfiles, cfgProfiles...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		all = append(all, name)
	}
	return all, nil
}

// profileSections returns the section names of the INI file at path.
// In ~/.aws/config non-default profiles are written "[profile name]"; the
// prefix is stripped when stripProfilePrefix is set.
func profileSections(path string, stripProfilePrefix bool) ([]string, error) {
	f, err := ini.LooseLoad(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var profiles []string
	for _, name := range f.SectionStrings() {
		if name == ini.DefaultSection {
			continue
		}
		if stripProfilePrefix && name != "default" {
			name = strings.TrimPrefix(name, "profile ")
		}
		profiles = append(profiles, strings.TrimSpace(name))
	}
	return profiles, nil
}
