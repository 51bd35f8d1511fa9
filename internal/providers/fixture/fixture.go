// Package fixture implements an offline provider adapter backed by a JSON
// file of resources. Mutations are recorded in memory and never leave the
// process, which makes the adapter suitable for demos and engine tests.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
)

// Data is the on-disk fixture document.
type Data struct {
	Regions   []string          `json:"regions"`
	Resources []models.Resource `json:"resources"`
	// ListErrors injects listing failures keyed by region, or by
	// "kind/region" for a single pair. Values are auditerr reasons.
	ListErrors map[string]string `json:"list_errors,omitempty"`
}

// Call records one mutating request received by the adapter.
type Call struct {
	Op         string
	ResourceID string
	Action     models.Action
}

// Adapter serves resources from Data.
type Adapter struct {
	data Data

	mu      sync.Mutex
	deleted map[string]bool
	calls   []Call
}

// Load reads a fixture document from path.
func Load(path string) (*Adapter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return New(data), nil
}

// New returns an adapter serving data.
func New(data Data) *Adapter {
	return &Adapter{data: data, deleted: make(map[string]bool)}
}

func (a *Adapter) Provider() models.Provider { return models.ProviderFixture }

// Kinds reports every kind; bucket and iam-user are global as on AWS.
func (a *Adapter) Kinds() []providers.KindSpec {
	specs := make([]providers.KindSpec, 0, len(models.AllKinds))
	for _, k := range models.AllKinds {
		specs = append(specs, providers.KindSpec{
			Kind:   k,
			Global: k == models.KindBucket || k == models.KindIAMUser,
		})
	}
	return specs
}

// Regions returns the declared regions, or the distinct regions of the
// fixture's resources when none are declared.
func (a *Adapter) Regions(_ context.Context) ([]string, error) {
	if len(a.data.Regions) > 0 {
		return append([]string(nil), a.data.Regions...), nil
	}
	seen := make(map[string]struct{})
	var regions []string
	for _, r := range a.data.Resources {
		if r.Region == "" || r.Region == models.GlobalRegion {
			continue
		}
		if _, ok := seen[r.Region]; !ok {
			seen[r.Region] = struct{}{}
			regions = append(regions, r.Region)
		}
	}
	sort.Strings(regions)
	return regions, nil
}

func (a *Adapter) ListResources(ctx context.Context, kind models.Kind, filter providers.Filter) ([]models.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if reason, ok := a.listError(kind, filter.Region); ok {
		return nil, &auditerr.ProviderError{
			Provider: models.ProviderFixture,
			Op:       "list " + string(kind),
			Region:   filter.Region,
			Kind:     kind,
			Reason:   auditerr.Reason(reason),
			Err:      fmt.Errorf("injected %s failure", reason),
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.Resource
	for _, r := range a.data.Resources {
		if r.Kind != kind || a.deleted[providers.Key(r)] {
			continue
		}
		if filter.Region != "" && r.Region != filter.Region {
			continue
		}
		if r.Provider == "" {
			r.Provider = models.ProviderFixture
		}
		out = append(out, r)
	}
	return providers.Dedupe(out), nil
}

func (a *Adapter) listError(kind models.Kind, region string) (string, bool) {
	if a.data.ListErrors == nil {
		return "", false
	}
	if reason, ok := a.data.ListErrors[string(kind)+"/"+region]; ok {
		return reason, true
	}
	reason, ok := a.data.ListErrors[region]
	return reason, ok
}

// Mutate records the call. Deleting an already-deleted or unknown resource
// succeeds.
func (a *Adapter) Mutate(ctx context.Context, res models.Resource, action models.Action) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, Call{Op: "mutate", ResourceID: res.ID, Action: action})
	switch action {
	case models.ActionDelete:
		a.deleted[providers.Key(res)] = true
	case models.ActionNone:
		return providers.Unsupported(res, action)
	}
	return nil
}

// Backup returns a synthetic snapshot id for volumes and db instances. Like
// the cloud adapters it fails with a not-found ProviderError when the resource
// was deleted or never existed.
func (a *Adapter) Backup(ctx context.Context, res models.Resource, action models.Action) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, Call{Op: "backup", ResourceID: res.ID, Action: action})
	if !a.exists(res) {
		return "", &auditerr.ProviderError{
			Provider:   models.ProviderFixture,
			Op:         "backup " + string(res.Kind),
			Region:     res.Region,
			Kind:       res.Kind,
			ResourceID: res.ID,
			Reason:     auditerr.ReasonNotFound,
			Err:        fmt.Errorf("%s %s not found", res.Kind, res.ID),
		}
	}
	switch res.Kind {
	case models.KindVolume, models.KindDBInstance:
		return "fixture-snap-" + res.ID, nil
	}
	return "", nil
}

// exists reports whether res is in the fixture and not deleted. Callers hold a.mu.
func (a *Adapter) exists(res models.Resource) bool {
	key := providers.Key(res)
	if a.deleted[key] {
		return false
	}
	for _, r := range a.data.Resources {
		if providers.Key(r) == key {
			return true
		}
	}
	return false
}

// Calls returns a copy of the recorded mutating calls.
func (a *Adapter) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Call(nil), a.calls...)
}
