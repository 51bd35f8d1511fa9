package gcp

import (
	"context"
	"path"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/compute/v1"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
)

// zonalID identifies a zonal resource; names are only unique per zone.
func zonalID(zone, name string) string { return zone + "/" + name }

// splitID reverses zonalID.
func splitID(id string) (scope, name string) {
	i := strings.LastIndex(id, "/")
	if i < 0 {
		return "", id
	}
	return id[:i], id[i+1:]
}

func (a *Adapter) collectDisks(ctx context.Context, region string) ([]models.Resource, error) {
	zones, err := a.zonesOf(ctx, region)
	if err != nil {
		return nil, err
	}
	var out []models.Resource
	for _, zone := range zones {
		err := a.svc.Disks.List(a.project, zone).Pages(ctx, func(page *compute.DiskList) error {
			for _, d := range page.Items {
				out = append(out, models.Resource{
					ID:        zonalID(zone, d.Name),
					Kind:      models.KindVolume,
					Provider:  models.ProviderGCP,
					Region:    region,
					SizeGB:    models.Float64(float64(d.SizeGb)),
					CreatedAt: parseTimestamp(d.CreationTimestamp),
					Tags:      d.Labels,
					Attributes: map[string]any{
						models.AttrName:       d.Name,
						"zone":                zone,
						models.AttrState:      d.Status,
						models.AttrVolumeType: path.Base(d.Type),
						models.AttrAttached:   len(d.Users) > 0,
					},
				})
			}
			return nil
		})
		if err != nil {
			return nil, wrapError(err, "disks.list", region, models.KindVolume, "")
		}
	}
	return out, nil
}

func (a *Adapter) collectAddresses(ctx context.Context, region string) ([]models.Resource, error) {
	var out []models.Resource
	err := a.svc.Addresses.List(a.project, region).Pages(ctx, func(page *compute.AddressList) error {
		for _, addr := range page.Items {
			out = append(out, models.Resource{
				ID:        zonalID(region, addr.Name),
				Kind:      models.KindAddress,
				Provider:  models.ProviderGCP,
				Region:    region,
				CreatedAt: parseTimestamp(addr.CreationTimestamp),
				Tags:      addr.Labels,
				Attributes: map[string]any{
					models.AttrName:     addr.Name,
					models.AttrState:    addr.Status,
					models.AttrAttached: addr.Status == "IN_USE" || len(addr.Users) > 0,
					"public_ip":         addr.Address,
					"address_type":      addr.AddressType,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(err, "addresses.list", region, models.KindAddress, "")
	}
	return out, nil
}

func (a *Adapter) collectInstances(ctx context.Context, region string) ([]models.Resource, error) {
	zones, err := a.zonesOf(ctx, region)
	if err != nil {
		return nil, err
	}
	var out []models.Resource
	for _, zone := range zones {
		err := a.svc.Instances.List(a.project, zone).Pages(ctx, func(page *compute.InstanceList) error {
			for _, inst := range page.Items {
				attrs := map[string]any{
					models.AttrName:         inst.Name,
					"zone":                  zone,
					models.AttrState:        normalizeInstanceStatus(inst.Status),
					models.AttrInstanceType: path.Base(inst.MachineType),
				}
				if t := parseTimestamp(inst.LastStopTimestamp); !t.IsZero() {
					attrs[models.AttrStoppedAt] = t.Format(time.RFC3339)
				}
				out = append(out, models.Resource{
					ID:         zonalID(zone, inst.Name),
					Kind:       models.KindInstance,
					Provider:   models.ProviderGCP,
					Region:     region,
					CreatedAt:  parseTimestamp(inst.CreationTimestamp),
					Tags:       inst.Labels,
					Attributes: attrs,
				})
			}
			return nil
		})
		if err != nil {
			return nil, wrapError(err, "instances.list", region, models.KindInstance, "")
		}
	}
	return out, nil
}

// normalizeInstanceStatus maps Compute Engine statuses onto the EC2-style
// running/stopped vocabulary rules use.
func normalizeInstanceStatus(status string) string {
	switch status {
	case "RUNNING":
		return "running"
	case "TERMINATED", "STOPPED", "SUSPENDED":
		return "stopped"
	}
	return strings.ToLower(status)
}

func (a *Adapter) collectFirewalls(ctx context.Context) ([]models.Resource, error) {
	var out []models.Resource
	err := a.svc.Firewalls.List(a.project).Pages(ctx, func(page *compute.FirewallList) error {
		for _, fw := range page.Items {
			var ingress []any
			if fw.Direction == "INGRESS" && !fw.Disabled {
				for _, allowed := range fw.Allowed {
					for _, pr := range portRanges(allowed.IPProtocol, allowed.Ports) {
						ingress = append(ingress, providers.IngressEntry(allowed.IPProtocol, pr[0], pr[1], fw.SourceRanges))
					}
				}
			}
			out = append(out, models.Resource{
				ID:        fw.Name,
				Kind:      models.KindFirewallRule,
				Provider:  models.ProviderGCP,
				Region:    models.GlobalRegion,
				CreatedAt: parseTimestamp(fw.CreationTimestamp),
				Attributes: map[string]any{
					models.AttrName:    fw.Name,
					"network":          path.Base(fw.Network),
					"direction":        fw.Direction,
					"disabled":         fw.Disabled,
					models.AttrIngress: ingress,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(err, "firewalls.list", models.GlobalRegion, models.KindFirewallRule, "")
	}
	return out, nil
}

// portRanges expands firewall port specs ("22", "8000-8080") into inclusive
// ranges. No ports, or protocol "all", means every port.
func portRanges(protocol string, ports []string) [][2]int {
	if protocol == "all" || len(ports) == 0 {
		return [][2]int{{0, 65535}}
	}
	var out [][2]int
	for _, p := range ports {
		lo, hi, found := strings.Cut(p, "-")
		from, err := strconv.Atoi(lo)
		if err != nil {
			continue
		}
		to := from
		if found {
			if v, err := strconv.Atoi(hi); err == nil {
				to = v
			}
		}
		out = append(out, [2]int{from, to})
	}
	return out
}

func (a *Adapter) collectSnapshots(ctx context.Context) ([]models.Resource, error) {
	var out []models.Resource
	err := a.svc.Snapshots.List(a.project).Pages(ctx, func(page *compute.SnapshotList) error {
		for _, s := range page.Items {
			out = append(out, models.Resource{
				ID:        s.Name,
				Kind:      models.KindSnapshot,
				Provider:  models.ProviderGCP,
				Region:    models.GlobalRegion,
				SizeGB:    models.Float64(float64(s.DiskSizeGb)),
				CreatedAt: parseTimestamp(s.CreationTimestamp),
				Tags:      s.Labels,
				Attributes: map[string]any{
					models.AttrName:  s.Name,
					models.AttrState: s.Status,
					"source_disk":    path.Base(s.SourceDisk),
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(err, "snapshots.list", models.GlobalRegion, models.KindSnapshot, "")
	}
	return out, nil
}
