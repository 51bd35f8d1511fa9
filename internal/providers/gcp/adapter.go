// Package gcp implements the provider adapter for Google Cloud on top of the
// Compute Engine v1 API.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"google.golang.org/api/compute/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
)

// flagLabelKey is the label the tag action writes. GCP label keys cannot
// contain ':' so models.FlagTagKey is not usable here.
const flagLabelKey = "cloudsweep-flagged"

// Adapter lists and remediates Compute Engine resources in one project.
type Adapter struct {
	svc     *compute.Service
	project string
	now     func() time.Time

	mu    sync.Mutex
	zones map[string][]string // region -> zone names
}

// New builds an adapter using Application Default Credentials unless opts
// override them.
func New(ctx context.Context, project string, opts ...option.ClientOption) (*Adapter, error) {
	if project == "" {
		return nil, auditerr.NewConfigError("project", "gcp requires a project id")
	}
	svc, err := compute.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create compute service: %w", err)
	}
	return NewWithService(svc, project), nil
}

// NewWithService wraps an existing compute service.
func NewWithService(svc *compute.Service, project string) *Adapter {
	return &Adapter{svc: svc, project: project, now: time.Now, zones: make(map[string][]string)}
}

func (a *Adapter) Provider() models.Provider { return models.ProviderGCP }

// Kinds lists the supported kinds. Firewall rules and snapshots are global
// resources in Compute Engine.
func (a *Adapter) Kinds() []providers.KindSpec {
	return []providers.KindSpec{
		{Kind: models.KindVolume},
		{Kind: models.KindAddress},
		{Kind: models.KindInstance},
		{Kind: models.KindFirewallRule, Global: true},
		{Kind: models.KindSnapshot, Global: true},
	}
}

// Regions lists the project's regions and remembers their zones.
func (a *Adapter) Regions(ctx context.Context) ([]string, error) {
	var regions []string
	err := a.svc.Regions.List(a.project).Pages(ctx, func(page *compute.RegionList) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		for _, r := range page.Items {
			regions = append(regions, r.Name)
			a.zones[r.Name] = zoneNames(r.Zones)
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(err, "regions.list", "", "", "")
	}
	sort.Strings(regions)
	return regions, nil
}

// zonesOf returns the zones of region, fetching the region when Regions was
// not called first.
func (a *Adapter) zonesOf(ctx context.Context, region string) ([]string, error) {
	a.mu.Lock()
	zones, ok := a.zones[region]
	a.mu.Unlock()
	if ok {
		return zones, nil
	}
	r, err := a.svc.Regions.Get(a.project, region).Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err, "regions.get", region, "", "")
	}
	zones = zoneNames(r.Zones)
	a.mu.Lock()
	a.zones[region] = zones
	a.mu.Unlock()
	return zones, nil
}

func (a *Adapter) ListResources(ctx context.Context, kind models.Kind, filter providers.Filter) ([]models.Resource, error) {
	var (
		out []models.Resource
		err error
	)
	switch kind {
	case models.KindVolume:
		out, err = a.collectDisks(ctx, filter.Region)
	case models.KindAddress:
		out, err = a.collectAddresses(ctx, filter.Region)
	case models.KindInstance:
		out, err = a.collectInstances(ctx, filter.Region)
	case models.KindFirewallRule:
		out, err = a.collectFirewalls(ctx)
	case models.KindSnapshot:
		out, err = a.collectSnapshots(ctx)
	default:
		return nil, fmt.Errorf("gcp %s: %w", kind, providers.ErrUnsupportedKind)
	}
	if err != nil {
		return nil, err
	}
	return providers.Dedupe(out), nil
}

// zoneNames strips zone URLs down to their names.
func zoneNames(urls []string) []string {
	names := make([]string, 0, len(urls))
	for _, u := range urls {
		names = append(names, path.Base(u))
	}
	sort.Strings(names)
	return names
}

// parseTimestamp parses the RFC 3339 timestamps Compute Engine returns.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// ClassifyError maps a googleapi error onto an auditerr.Reason.
func ClassifyError(err error) auditerr.Reason {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 404:
			return auditerr.ReasonNotFound
		case 429:
			return auditerr.ReasonRateLimit
		case 401, 403:
			return auditerr.ReasonAuth
		case 408, 504:
			return auditerr.ReasonTimeout
		case 500, 502, 503:
			return auditerr.ReasonNetwork
		}
	}
	return auditerr.Classify(err)
}

func wrapError(err error, op, region string, kind models.Kind, id string) error {
	if err == nil {
		return nil
	}
	return &auditerr.ProviderError{
		Provider:   models.ProviderGCP,
		Op:         op,
		Region:     region,
		Kind:       kind,
		ResourceID: id,
		Reason:     ClassifyError(err),
		Err:        err,
	}
}
