package gcp

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/compute/v1"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
)

// Mutate applies action to res and waits for the resulting operation. A
// resource that no longer exists counts as already remediated.
func (a *Adapter) Mutate(ctx context.Context, res models.Resource, action models.Action) error {
	err := a.mutate(ctx, res, action)
	if err != nil && auditerr.IsNotFound(err) {
		return nil
	}
	return err
}

func (a *Adapter) mutate(ctx context.Context, res models.Resource, action models.Action) error {
	scope, name := splitID(res.ID)

	var (
		op  *compute.Operation
		err error
	)
	switch {
	case res.Kind == models.KindVolume && action == models.ActionDelete:
		op, err = a.svc.Disks.Delete(a.project, scope, name).Context(ctx).Do()
	case res.Kind == models.KindVolume && action == models.ActionTag:
		op, err = a.labelDisk(ctx, scope, name)
	case res.Kind == models.KindAddress && action == models.ActionDelete:
		op, err = a.svc.Addresses.Delete(a.project, scope, name).Context(ctx).Do()
	case res.Kind == models.KindInstance && action == models.ActionStop:
		op, err = a.svc.Instances.Stop(a.project, scope, name).Context(ctx).Do()
	case res.Kind == models.KindInstance && action == models.ActionTag:
		op, err = a.labelInstance(ctx, scope, name)
	case res.Kind == models.KindFirewallRule && action == models.ActionPatch:
		op, err = a.svc.Firewalls.Patch(a.project, name, &compute.Firewall{
			Disabled:        true,
			ForceSendFields: []string{"Disabled"},
		}).Context(ctx).Do()
	case res.Kind == models.KindSnapshot && action == models.ActionDelete:
		op, err = a.svc.Snapshots.Delete(a.project, name).Context(ctx).Do()
	default:
		return providers.Unsupported(res, action)
	}
	if err != nil {
		return wrapError(err, string(action), res.Region, res.Kind, res.ID)
	}
	return a.wait(ctx, op, res)
}

func (a *Adapter) labelDisk(ctx context.Context, zone, name string) (*compute.Operation, error) {
	d, err := a.svc.Disks.Get(a.project, zone, name).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return a.svc.Disks.SetLabels(a.project, zone, name, &compute.ZoneSetLabelsRequest{
		Labels:           withFlag(d.Labels),
		LabelFingerprint: d.LabelFingerprint,
	}).Context(ctx).Do()
}

func (a *Adapter) labelInstance(ctx context.Context, zone, name string) (*compute.Operation, error) {
	inst, err := a.svc.Instances.Get(a.project, zone, name).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return a.svc.Instances.SetLabels(a.project, zone, name, &compute.InstancesSetLabelsRequest{
		Labels:           withFlag(inst.Labels),
		LabelFingerprint: inst.LabelFingerprint,
	}).Context(ctx).Do()
}

func withFlag(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out[flagLabelKey] = "true"
	return out
}

// Backup snapshots a disk before it is deleted and waits for the snapshot to
// be ready. A firewall patch records the source ranges it is about to
// disable.
func (a *Adapter) Backup(ctx context.Context, res models.Resource, action models.Action) (string, error) {
	switch {
	case res.Kind == models.KindVolume && action == models.ActionDelete:
		zone, name := splitID(res.ID)
		snapName := fmt.Sprintf("cloudsweep-%s-%d", name, a.now().UTC().Unix())
		op, err := a.svc.Disks.CreateSnapshot(a.project, zone, name, &compute.Snapshot{
			Name:   snapName,
			Labels: map[string]string{flagLabelKey: "backup"},
		}).Context(ctx).Do()
		if err != nil {
			return "", wrapError(err, "disks.createSnapshot", res.Region, res.Kind, res.ID)
		}
		if err := a.wait(ctx, op, res); err != nil {
			return "", err
		}
		return snapName, nil

	case res.Kind == models.KindFirewallRule && action == models.ActionPatch:
		fw, err := a.svc.Firewalls.Get(a.project, res.ID).Context(ctx).Do()
		if err != nil {
			return "", wrapError(err, "firewalls.get", res.Region, res.Kind, res.ID)
		}
		return fmt.Sprintf("%s:enabled sourceRanges=%s", fw.Name, strings.Join(fw.SourceRanges, ",")), nil
	}
	return "", nil
}

// wait blocks until op is DONE and surfaces its error, if any.
func (a *Adapter) wait(ctx context.Context, op *compute.Operation, res models.Resource) error {
	for op != nil && op.Status != "DONE" {
		var err error
		switch {
		case op.Zone != "":
			op, err = a.svc.ZoneOperations.Wait(a.project, lastSegment(op.Zone), op.Name).Context(ctx).Do()
		case op.Region != "":
			op, err = a.svc.RegionOperations.Wait(a.project, lastSegment(op.Region), op.Name).Context(ctx).Do()
		default:
			op, err = a.svc.GlobalOperations.Wait(a.project, op.Name).Context(ctx).Do()
		}
		if err != nil {
			return wrapError(err, "operations.wait", res.Region, res.Kind, res.ID)
		}
	}
	if op != nil && op.Error != nil && len(op.Error.Errors) > 0 {
		e := op.Error.Errors[0]
		return &auditerr.ProviderError{
			Provider:   models.ProviderGCP,
			Op:         op.OperationType,
			Region:     res.Region,
			Kind:       res.Kind,
			ResourceID: res.ID,
			Reason:     operationReason(e.Code),
			Err:        fmt.Errorf("%s: %s", e.Code, e.Message),
		}
	}
	return nil
}

func operationReason(code string) auditerr.Reason {
	switch code {
	case "RESOURCE_NOT_FOUND":
		return auditerr.ReasonNotFound
	case "QUOTA_EXCEEDED", "RATE_LIMIT_EXCEEDED":
		return auditerr.ReasonRateLimit
	case "PERMISSIONS_ERROR", "FORBIDDEN":
		return auditerr.ReasonAuth
	}
	return auditerr.ReasonUnknown
}

func lastSegment(url string) string {
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}
