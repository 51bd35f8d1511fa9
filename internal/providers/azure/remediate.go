package azure

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
)

// adminPorts are the ports a security-group patch closes to the internet.
var adminPorts = []int{22, 3389}

// Mutate applies action to res and waits for the long-running operation to
// finish. A resource that no longer exists counts as already remediated.
func (a *Adapter) Mutate(ctx context.Context, res models.Resource, action models.Action) error {
	err := a.mutate(ctx, res, action)
	if err != nil && auditerr.IsNotFound(err) {
		return nil
	}
	return err
}

func (a *Adapter) mutate(ctx context.Context, res models.Resource, action models.Action) error {
	rid, err := arm.ParseResourceID(res.ID)
	if err != nil {
		return fmt.Errorf("azure resource id %q: %w", res.ID, err)
	}
	rg, name := rid.ResourceGroupName, rid.Name

	switch {
	case res.Kind == models.KindVolume && action == models.ActionDelete:
		poller, err := a.disks.BeginDelete(ctx, rg, name, nil)
		if err == nil {
			_, err = poller.PollUntilDone(ctx, nil)
		}
		return wrapError(err, "disks.delete", res.Region, res.Kind, res.ID)

	case res.Kind == models.KindAddress && action == models.ActionDelete:
		poller, err := a.publicIPs.BeginDelete(ctx, rg, name, nil)
		if err == nil {
			_, err = poller.PollUntilDone(ctx, nil)
		}
		return wrapError(err, "publicIPAddresses.delete", res.Region, res.Kind, res.ID)

	case res.Kind == models.KindSnapshot && action == models.ActionDelete:
		poller, err := a.snapshots.BeginDelete(ctx, rg, name, nil)
		if err == nil {
			_, err = poller.PollUntilDone(ctx, nil)
		}
		return wrapError(err, "snapshots.delete", res.Region, res.Kind, res.ID)

	case res.Kind == models.KindSecurityGroup && action == models.ActionPatch:
		return a.denyOpenAdminRules(ctx, res, rg, name)

	case action == models.ActionTag:
		return a.tag(ctx, res, rg, name)
	}
	return providers.Unsupported(res, action)
}

// denyOpenAdminRules flips every inbound allow rule exposing an admin port
// to the internet to deny. The rules are kept so the change can be undone.
func (a *Adapter) denyOpenAdminRules(ctx context.Context, res models.Resource, rg, nsgName string) error {
	rules, err := a.openAdminRules(ctx, res, rg, nsgName)
	if err != nil {
		return err
	}
	for _, rule := range rules {
		rule.Properties.Access = to.Ptr(armnetwork.SecurityRuleAccessDeny)
		poller, err := a.nsgRules.BeginCreateOrUpdate(ctx, rg, nsgName, deref(rule.Name), *rule, nil)
		if err == nil {
			_, err = poller.PollUntilDone(ctx, nil)
		}
		if err != nil {
			return wrapError(err, "securityRules.createOrUpdate", res.Region, res.Kind, res.ID)
		}
	}
	return nil
}

func (a *Adapter) openAdminRules(ctx context.Context, res models.Resource, rg, nsgName string) ([]*armnetwork.SecurityRule, error) {
	resp, err := a.nsgs.Get(ctx, rg, nsgName, nil)
	if err != nil {
		return nil, wrapError(err, "networkSecurityGroups.get", res.Region, res.Kind, res.ID)
	}
	var out []*armnetwork.SecurityRule
	if resp.Properties == nil {
		return out, nil
	}
	for _, rule := range resp.Properties.SecurityRules {
		if isOpenAdminRule(rule) {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return deref(out[i].Name) < deref(out[j].Name) })
	return out, nil
}

func isOpenAdminRule(rule *armnetwork.SecurityRule) bool {
	for _, e := range ingressFromRule(rule) {
		entry := e.(map[string]any)
		from, to := entry["from_port"].(int), entry["to_port"].(int)
		world := false
		for _, c := range entry["cidrs"].([]any) {
			if providers.IsWorldCIDR(c.(string)) {
				world = true
			}
		}
		if !world {
			continue
		}
		for _, port := range adminPorts {
			if from <= port && port <= to {
				return true
			}
		}
	}
	return false
}

// tag merges the flag tag into the resource's existing tags.
func (a *Adapter) tag(ctx context.Context, res models.Resource, rg, name string) error {
	tags := map[string]*string{models.FlagTagKey: to.Ptr("true")}
	for k, v := range res.Tags {
		tags[k] = to.Ptr(v)
	}

	var err error
	switch res.Kind {
	case models.KindVolume:
		p, e := a.disks.BeginUpdate(ctx, rg, name, armcompute.DiskUpdate{Tags: tags}, nil)
		if err = e; err == nil {
			_, err = p.PollUntilDone(ctx, nil)
		}
	case models.KindSnapshot:
		p, e := a.snapshots.BeginUpdate(ctx, rg, name, armcompute.SnapshotUpdate{Tags: tags}, nil)
		if err = e; err == nil {
			_, err = p.PollUntilDone(ctx, nil)
		}
	case models.KindAddress:
		_, err = a.publicIPs.UpdateTags(ctx, rg, name, armnetwork.TagsObject{Tags: tags}, nil)
	case models.KindSecurityGroup:
		_, err = a.nsgs.UpdateTags(ctx, rg, name, armnetwork.TagsObject{Tags: tags}, nil)
	default:
		return providers.Unsupported(res, models.ActionTag)
	}
	return wrapError(err, "tag", res.Region, res.Kind, res.ID)
}

// Backup copies a disk into a snapshot before it is deleted and returns the
// snapshot's resource id. A security-group patch records the rules it is
// about to deny.
func (a *Adapter) Backup(ctx context.Context, res models.Resource, action models.Action) (string, error) {
	rid, err := arm.ParseResourceID(res.ID)
	if err != nil {
		return "", fmt.Errorf("azure resource id %q: %w", res.ID, err)
	}

	switch {
	case res.Kind == models.KindVolume && action == models.ActionDelete:
		snapName := fmt.Sprintf("cloudsweep-%s-%d", rid.Name, a.now().UTC().Unix())
		poller, err := a.snapshots.BeginCreateOrUpdate(ctx, rid.ResourceGroupName, snapName, armcompute.Snapshot{
			Location: to.Ptr(res.Region),
			Tags:     map[string]*string{models.FlagTagKey: to.Ptr("backup")},
			Properties: &armcompute.SnapshotProperties{
				CreationData: &armcompute.CreationData{
					CreateOption:     to.Ptr(armcompute.DiskCreateOptionCopy),
					SourceResourceID: to.Ptr(res.ID),
				},
			},
		}, nil)
		if err != nil {
			return "", wrapError(err, "snapshots.createOrUpdate", res.Region, res.Kind, res.ID)
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return "", wrapError(err, "snapshots.createOrUpdate", res.Region, res.Kind, res.ID)
		}
		if resp.ID != nil {
			return *resp.ID, nil
		}
		return snapName, nil

	case res.Kind == models.KindSecurityGroup && action == models.ActionPatch:
		rules, err := a.openAdminRules(ctx, res, rid.ResourceGroupName, rid.Name)
		if err != nil {
			return "", err
		}
		names := make([]string, 0, len(rules))
		for _, r := range rules {
			names = append(names, deref(r.Name))
		}
		return fmt.Sprintf("%s:allow rules=%s", rid.Name, strings.Join(names, ",")), nil
	}
	return "", nil
}
