// Package providers defines the uniform boundary between the audit engine and
// a cloud. Each subpackage (aws, gcp, azure, kubernetes, fixture) translates
// one provider's resource model into models.Resource and applies remediation
// actions by resource id.
package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

// ErrUnsupportedKind is returned by ListResources for a kind the adapter does
// not know how to list.
var ErrUnsupportedKind = errors.New("resource kind not supported by provider")

// ErrUnsupportedAction is returned by Mutate for an action the adapter cannot
// apply to the resource's kind.
var ErrUnsupportedAction = errors.New("action not supported for resource kind")

// KindSpec describes one kind an adapter can list.
type KindSpec struct {
	Kind models.Kind
	// Global kinds are listed once under models.GlobalRegion instead of once
	// per region.
	Global bool
}

// Filter narrows a ListResources call.
type Filter struct {
	Region string
}

// Adapter lists and mutates resources for one provider.
//
// ListResources must return a complete, deduplicated result for the
// (kind, region) pair or an error; it never returns a partial page set.
// Mutate treats a resource that no longer exists as success for delete and
// stop so repeated remediation is idempotent. Backup creates the reversible
// artifact a destructive action needs and returns its identifier, or "" when
// the provider has nothing to snapshot for the kind.
type Adapter interface {
	Provider() models.Provider
	Kinds() []KindSpec
	Regions(ctx context.Context) ([]string, error)
	ListResources(ctx context.Context, kind models.Kind, filter Filter) ([]models.Resource, error)
	Mutate(ctx context.Context, res models.Resource, action models.Action) error
	Backup(ctx context.Context, res models.Resource, action models.Action) (string, error)
}

// LookupKind returns the KindSpec the adapter registers for kind.
func LookupKind(a Adapter, kind models.Kind) (KindSpec, bool) {
	for _, ks := range a.Kinds() {
		if ks.Kind == kind {
			return ks, true
		}
	}
	return KindSpec{}, false
}

// Dedupe drops resources whose (kind, ID) pair was already seen, keeping the
// first occurrence so the listing order is preserved. IDs are only unique
// within a kind: a GCP instance and its boot disk share zone/name.
func Dedupe(resources []models.Resource) []models.Resource {
	if len(resources) == 0 {
		return resources
	}
	seen := make(map[string]struct{}, len(resources))
	out := make([]models.Resource, 0, len(resources))
	for _, r := range resources {
		key := Key(r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Key identifies a resource within one provider.
func Key(r models.Resource) string {
	return string(r.Kind) + "/" + r.ID
}

// Unsupported builds the error an adapter returns for an action it cannot
// apply.
func Unsupported(res models.Resource, action models.Action) error {
	return fmt.Errorf("%s on %s %s: %w", action, res.Kind, res.ID, ErrUnsupportedAction)
}
