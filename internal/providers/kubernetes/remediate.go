package kubernetes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
)

// Mutate applies action to res. An object that is already gone counts as
// remediated.
func (a *Adapter) Mutate(ctx context.Context, res models.Resource, action models.Action) error {
	err := a.mutate(ctx, res, action)
	if err != nil && auditerr.IsNotFound(err) {
		return nil
	}
	return err
}

func (a *Adapter) mutate(ctx context.Context, res models.Resource, action models.Action) error {
	core := a.client.CoreV1()
	switch {
	case res.Kind == models.KindVolume && action == models.ActionDelete:
		err := core.PersistentVolumes().Delete(ctx, res.ID, metav1.DeleteOptions{})
		return wrapError(err, "persistentvolumes.delete", res.Region, res.Kind, res.ID)

	case res.Kind == models.KindVolume && action == models.ActionTag:
		_, err := core.PersistentVolumes().Patch(ctx, res.ID, types.MergePatchType, flagPatch(), metav1.PatchOptions{})
		return wrapError(err, "persistentvolumes.patch", res.Region, res.Kind, res.ID)

	case res.Kind == models.KindAddress && (action == models.ActionDelete || action == models.ActionTag):
		ns, name, err := splitServiceID(res.ID)
		if err != nil {
			return err
		}
		if action == models.ActionDelete {
			err = core.Services(ns).Delete(ctx, name, metav1.DeleteOptions{})
		} else {
			_, err = core.Services(ns).Patch(ctx, name, types.MergePatchType, flagPatch(), metav1.PatchOptions{})
		}
		return wrapError(err, "services."+string(action), ns, res.Kind, res.ID)
	}
	return providers.Unsupported(res, action)
}

// Backup switches a PersistentVolume's reclaim policy to Retain before the
// volume object is deleted, so the backing storage outlives it. The undo
// reference records the previous policy.
func (a *Adapter) Backup(ctx context.Context, res models.Resource, action models.Action) (string, error) {
	if res.Kind != models.KindVolume || action != models.ActionDelete {
		return "", nil
	}
	pvs := a.client.CoreV1().PersistentVolumes()
	pv, err := pvs.Get(ctx, res.ID, metav1.GetOptions{})
	if err != nil {
		return "", wrapError(err, "persistentvolumes.get", res.Region, res.Kind, res.ID)
	}
	previous := pv.Spec.PersistentVolumeReclaimPolicy
	if previous != corev1.PersistentVolumeReclaimRetain {
		patch, _ := json.Marshal(map[string]any{
			"spec": map[string]any{"persistentVolumeReclaimPolicy": corev1.PersistentVolumeReclaimRetain},
		})
		if _, err := pvs.Patch(ctx, res.ID, types.MergePatchType, patch, metav1.PatchOptions{}); err != nil {
			return "", wrapError(err, "persistentvolumes.patch", res.Region, res.Kind, res.ID)
		}
	}
	return fmt.Sprintf("pv/%s:reclaimPolicy=%s", res.ID, previous), nil
}

func flagPatch() []byte {
	patch, _ := json.Marshal(map[string]any{
		"metadata": map[string]any{"labels": map[string]string{flagLabelKey: "true"}},
	})
	return patch
}

func splitServiceID(id string) (namespace, name string, err error) {
	ns, name, ok := strings.Cut(id, "/")
	if !ok || ns == "" || name == "" {
		return "", "", fmt.Errorf("service id %q is not namespace/name", id)
	}
	return ns, name, nil
}
