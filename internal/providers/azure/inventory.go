package azure

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
)

func (a *Adapter) collectDisks(ctx context.Context) ([]models.Resource, error) {
	var out []models.Resource
	pager := a.disks.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapError(err, "disks.list", "", models.KindVolume, "")
		}
		for _, d := range page.Value {
			if d == nil || d.ID == nil {
				continue
			}
			attrs := baseAttributes(*d.ID, deref(d.Name))
			var size *float64
			var created time.Time
			if p := d.Properties; p != nil {
				if p.DiskSizeGB != nil {
					size = models.Float64(float64(*p.DiskSizeGB))
				}
				if p.TimeCreated != nil {
					created = p.TimeCreated.UTC()
				}
				if p.DiskState != nil {
					attrs[models.AttrState] = string(*p.DiskState)
					attrs[models.AttrAttached] = *p.DiskState != armcompute.DiskStateUnattached
				}
			}
			if d.ManagedBy != nil {
				attrs[models.AttrAttachedTo] = *d.ManagedBy
				attrs[models.AttrAttached] = true
			}
			if d.SKU != nil && d.SKU.Name != nil {
				attrs[models.AttrVolumeType] = string(*d.SKU.Name)
			}
			out = append(out, models.Resource{
				ID:         *d.ID,
				Kind:       models.KindVolume,
				Provider:   models.ProviderAzure,
				Region:     normalizeLocation(deref(d.Location)),
				SizeGB:     size,
				CreatedAt:  created,
				Tags:       tagsFromARM(d.Tags),
				Attributes: attrs,
			})
		}
	}
	return out, nil
}

func (a *Adapter) collectSnapshots(ctx context.Context) ([]models.Resource, error) {
	var out []models.Resource
	pager := a.snapshots.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapError(err, "snapshots.list", "", models.KindSnapshot, "")
		}
		for _, s := range page.Value {
			if s == nil || s.ID == nil {
				continue
			}
			attrs := baseAttributes(*s.ID, deref(s.Name))
			var size *float64
			var created time.Time
			if p := s.Properties; p != nil {
				if p.DiskSizeGB != nil {
					size = models.Float64(float64(*p.DiskSizeGB))
				}
				if p.TimeCreated != nil {
					created = p.TimeCreated.UTC()
				}
				if p.CreationData != nil && p.CreationData.SourceResourceID != nil {
					attrs["source_disk"] = *p.CreationData.SourceResourceID
				}
			}
			out = append(out, models.Resource{
				ID:         *s.ID,
				Kind:       models.KindSnapshot,
				Provider:   models.ProviderAzure,
				Region:     normalizeLocation(deref(s.Location)),
				SizeGB:     size,
				CreatedAt:  created,
				Tags:       tagsFromARM(s.Tags),
				Attributes: attrs,
			})
		}
	}
	return out, nil
}

func (a *Adapter) collectPublicIPs(ctx context.Context) ([]models.Resource, error) {
	var out []models.Resource
	pager := a.publicIPs.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapError(err, "publicIPAddresses.listAll", "", models.KindAddress, "")
		}
		for _, ip := range page.Value {
			if ip == nil || ip.ID == nil {
				continue
			}
			attrs := baseAttributes(*ip.ID, deref(ip.Name))
			attached := false
			if p := ip.Properties; p != nil {
				attached = p.IPConfiguration != nil || p.NatGateway != nil
				if p.IPAddress != nil {
					attrs["public_ip"] = *p.IPAddress
				}
				if p.IPConfiguration != nil && p.IPConfiguration.ID != nil {
					attrs[models.AttrAttachedTo] = *p.IPConfiguration.ID
				}
			}
			attrs[models.AttrAttached] = attached
			out = append(out, models.Resource{
				ID:         *ip.ID,
				Kind:       models.KindAddress,
				Provider:   models.ProviderAzure,
				Region:     normalizeLocation(deref(ip.Location)),
				Tags:       tagsFromARM(ip.Tags),
				Attributes: attrs,
			})
		}
	}
	return out, nil
}

func (a *Adapter) collectSecurityGroups(ctx context.Context) ([]models.Resource, error) {
	var out []models.Resource
	pager := a.nsgs.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, wrapError(err, "networkSecurityGroups.listAll", "", models.KindSecurityGroup, "")
		}
		for _, nsg := range page.Value {
			if nsg == nil || nsg.ID == nil {
				continue
			}
			attrs := baseAttributes(*nsg.ID, deref(nsg.Name))
			var ingress []any
			if nsg.Properties != nil {
				for _, rule := range nsg.Properties.SecurityRules {
					ingress = append(ingress, ingressFromRule(rule)...)
				}
			}
			attrs[models.AttrIngress] = ingress
			out = append(out, models.Resource{
				ID:         *nsg.ID,
				Kind:       models.KindSecurityGroup,
				Provider:   models.ProviderAzure,
				Region:     normalizeLocation(deref(nsg.Location)),
				Tags:       tagsFromARM(nsg.Tags),
				Attributes: attrs,
			})
		}
	}
	return out, nil
}

// ingressFromRule converts an inbound allow rule into ingress entries, one
// per destination port range. Other rules contribute nothing.
func ingressFromRule(rule *armnetwork.SecurityRule) []any {
	if rule == nil || rule.Properties == nil {
		return nil
	}
	p := rule.Properties
	if p.Direction == nil || *p.Direction != armnetwork.SecurityRuleDirectionInbound {
		return nil
	}
	if p.Access == nil || *p.Access != armnetwork.SecurityRuleAccessAllow {
		return nil
	}

	cidrs := sourcePrefixes(p)
	protocol := "*"
	if p.Protocol != nil {
		protocol = strings.ToLower(string(*p.Protocol))
	}
	var out []any
	for _, spec := range destinationPorts(p) {
		from, to, ok := parsePortSpec(spec)
		if !ok {
			continue
		}
		out = append(out, providers.IngressEntry(protocol, from, to, cidrs))
	}
	return out
}

func sourcePrefixes(p *armnetwork.SecurityRulePropertiesFormat) []string {
	var out []string
	if p.SourceAddressPrefix != nil {
		out = append(out, *p.SourceAddressPrefix)
	}
	for _, s := range p.SourceAddressPrefixes {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func destinationPorts(p *armnetwork.SecurityRulePropertiesFormat) []string {
	var out []string
	if p.DestinationPortRange != nil {
		out = append(out, *p.DestinationPortRange)
	}
	for _, s := range p.DestinationPortRanges {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// parsePortSpec parses "*", "22" or "1000-2000".
func parsePortSpec(spec string) (from, to int, ok bool) {
	spec = strings.TrimSpace(spec)
	if spec == "*" {
		return 0, 65535, true
	}
	lo, hi, isRange := strings.Cut(spec, "-")
	from, err := strconv.Atoi(lo)
	if err != nil {
		return 0, 0, false
	}
	if !isRange {
		return from, from, true
	}
	to, err = strconv.Atoi(hi)
	if err != nil {
		return 0, 0, false
	}
	return from, to, true
}

// baseAttributes records the name and resource group every ARM resource
// carries in its id.
func baseAttributes(id, name string) map[string]any {
	attrs := map[string]any{models.AttrName: name}
	if rid, err := arm.ParseResourceID(id); err == nil {
		attrs[models.AttrResourceGroup] = rid.ResourceGroupName
	}
	return attrs
}

func tagsFromARM(tags map[string]*string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = deref(v)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
