// Package azure implements the provider adapter for Azure Resource Manager:
// managed disks and snapshots through armcompute, public IPs and network
// security groups through armnetwork.
package azure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"
	"gopkg.in/ini.v1"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
)

const DefaultProfile = "default"

// Adapter lists and remediates resources in one subscription. ARM lists are
// subscription-wide, so each kind is fetched once and filtered by location.
type Adapter struct {
	subscription string

	disks     *armcompute.DisksClient
	snapshots *armcompute.SnapshotsClient
	publicIPs *armnetwork.PublicIPAddressesClient
	nsgs      *armnetwork.SecurityGroupsClient
	nsgRules  *armnetwork.SecurityRulesClient
	now       func() time.Time

	mu        sync.Mutex
	inventory map[models.Kind][]models.Resource
}

// New builds an adapter from the default Azure credential chain (environment,
// managed identity, az CLI).
func New(subscription string) (*Adapter, error) {
	if subscription == "" {
		return nil, auditerr.NewConfigError("subscription", "azure requires a subscription id")
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	return NewWithCredential(subscription, cred, nil)
}

// NewWithCredential builds an adapter from an explicit credential and
// client options.
func NewWithCredential(subscription string, cred azcore.TokenCredential, opts *arm.ClientOptions) (*Adapter, error) {
	computeClients, err := armcompute.NewClientFactory(subscription, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("create compute clients: %w", err)
	}
	networkClients, err := armnetwork.NewClientFactory(subscription, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("create network clients: %w", err)
	}
	return &Adapter{
		subscription: subscription,
		disks:        computeClients.NewDisksClient(),
		snapshots:    computeClients.NewSnapshotsClient(),
		publicIPs:    networkClients.NewPublicIPAddressesClient(),
		nsgs:         networkClients.NewSecurityGroupsClient(),
		nsgRules:     networkClients.NewSecurityRulesClient(),
		now:          time.Now,
		inventory:    make(map[models.Kind][]models.Resource),
	}, nil
}

// SubscriptionFromConfig reads the subscription id of profile from the ini
// file at path, or ~/.azure/config when path is empty.
func SubscriptionFromConfig(path, profile string) (string, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("unable to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".azure", "config")
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return "", fmt.Errorf("unable to load Azure config file: %w", err)
	}
	section, err := cfg.GetSection(profile)
	if err != nil {
		return "", fmt.Errorf("profile %s not found in Azure config: %w", profile, err)
	}
	sub := section.Key("subscription").String()
	if sub == "" {
		return "", fmt.Errorf("subscription ID not found in profile %s", profile)
	}
	return sub, nil
}

func (a *Adapter) Provider() models.Provider { return models.ProviderAzure }

func (a *Adapter) Kinds() []providers.KindSpec {
	return []providers.KindSpec{
		{Kind: models.KindVolume},
		{Kind: models.KindAddress},
		{Kind: models.KindSecurityGroup},
		{Kind: models.KindSnapshot},
	}
}

// Regions returns the locations that hold at least one supported resource.
func (a *Adapter) Regions(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, ks := range a.Kinds() {
		all, err := a.list(ctx, ks.Kind)
		if err != nil {
			return nil, err
		}
		for _, r := range all {
			seen[r.Region] = struct{}{}
		}
	}
	regions := make([]string, 0, len(seen))
	for r := range seen {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	return regions, nil
}

func (a *Adapter) ListResources(ctx context.Context, kind models.Kind, filter providers.Filter) ([]models.Resource, error) {
	if _, ok := providers.LookupKind(a, kind); !ok {
		return nil, fmt.Errorf("azure %s: %w", kind, providers.ErrUnsupportedKind)
	}
	all, err := a.list(ctx, kind)
	if err != nil {
		return nil, err
	}
	want := normalizeLocation(filter.Region)
	var out []models.Resource
	for _, r := range all {
		if want == "" || r.Region == want {
			out = append(out, r)
		}
	}
	return providers.Dedupe(out), nil
}

// list returns every resource of kind in the subscription. Successful
// listings are cached for the adapter's lifetime; failures are not.
func (a *Adapter) list(ctx context.Context, kind models.Kind) ([]models.Resource, error) {
	a.mu.Lock()
	cached, ok := a.inventory[kind]
	a.mu.Unlock()
	if ok {
		return cached, nil
	}

	var (
		out []models.Resource
		err error
	)
	switch kind {
	case models.KindVolume:
		out, err = a.collectDisks(ctx)
	case models.KindAddress:
		out, err = a.collectPublicIPs(ctx)
	case models.KindSecurityGroup:
		out, err = a.collectSecurityGroups(ctx)
	case models.KindSnapshot:
		out, err = a.collectSnapshots(ctx)
	default:
		return nil, fmt.Errorf("azure %s: %w", kind, providers.ErrUnsupportedKind)
	}
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.inventory[kind] = out
	a.mu.Unlock()
	return out, nil
}

// normalizeLocation lowercases a location and drops spaces so "East US"
// and "eastus" compare equal.
func normalizeLocation(loc string) string {
	return strings.ReplaceAll(strings.ToLower(loc), " ", "")
}

// ClassifyError maps an ARM response error onto an auditerr.Reason.
func ClassifyError(err error) auditerr.Reason {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch {
		case respErr.StatusCode == 404 || respErr.ErrorCode == "ResourceNotFound" || respErr.ErrorCode == "NotFound":
			return auditerr.ReasonNotFound
		case respErr.StatusCode == 429:
			return auditerr.ReasonRateLimit
		case respErr.StatusCode == 401 || respErr.StatusCode == 403:
			return auditerr.ReasonAuth
		case respErr.StatusCode == 408 || respErr.StatusCode == 504:
			return auditerr.ReasonTimeout
		case respErr.StatusCode >= 500:
			return auditerr.ReasonNetwork
		}
	}
	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return auditerr.ReasonAuth
	}
	return auditerr.Classify(err)
}

func wrapError(err error, op, region string, kind models.Kind, id string) error {
	if err == nil {
		return nil
	}
	return &auditerr.ProviderError{
		Provider:   models.ProviderAzure,
		Op:         op,
		Region:     region,
		Kind:       kind,
		ResourceID: id,
		Reason:     ClassifyError(err),
		Err:        err,
	}
}
