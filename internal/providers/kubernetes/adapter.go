// Package kubernetes implements the provider adapter for a Kubernetes
// cluster. PersistentVolumes map to the volume kind and LoadBalancer
// Services to the address kind; namespaces act as regions.
package kubernetes

import (
	"context"
	"fmt"
	"sort"

	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sclient "k8s.io/client-go/kubernetes"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
)

// flagLabelKey is the label the tag action writes.
const flagLabelKey = "cloudsweep.io/flagged"

const listPageSize = 500

// Adapter lists and remediates resources of one cluster.
type Adapter struct {
	client k8sclient.Interface
	info   ClusterInfo
}

// New connects to contextName through provider.
func New(provider KubeClientProvider, contextName string) (*Adapter, error) {
	cs, info, err := provider.ClientsetForContext(contextName)
	if err != nil {
		return nil, auditerr.NewConfigError("kube_context", "%v", err)
	}
	return NewWithClientset(cs, info), nil
}

// NewWithClientset wraps an existing clientset.
func NewWithClientset(cs k8sclient.Interface, info ClusterInfo) *Adapter {
	return &Adapter{client: cs, info: info}
}

// Cluster reports the context and server the adapter is bound to.
func (a *Adapter) Cluster() ClusterInfo { return a.info }

func (a *Adapter) Provider() models.Provider { return models.ProviderKubernetes }

// Kinds lists the supported kinds. PersistentVolumes are cluster-scoped.
func (a *Adapter) Kinds() []providers.KindSpec {
	return []providers.KindSpec{
		{Kind: models.KindVolume, Global: true},
		{Kind: models.KindAddress},
	}
}

// Regions lists the cluster's namespaces.
func (a *Adapter) Regions(ctx context.Context) ([]string, error) {
	var names []string
	opts := metav1.ListOptions{Limit: listPageSize}
	for {
		list, err := a.client.CoreV1().Namespaces().List(ctx, opts)
		if err != nil {
			return nil, wrapError(err, "namespaces.list", "", "", "")
		}
		for _, ns := range list.Items {
			names = append(names, ns.Name)
		}
		if list.Continue == "" {
			break
		}
		opts.Continue = list.Continue
	}
	sort.Strings(names)
	return names, nil
}

func (a *Adapter) ListResources(ctx context.Context, kind models.Kind, filter providers.Filter) ([]models.Resource, error) {
	var (
		out []models.Resource
		err error
	)
	switch kind {
	case models.KindVolume:
		out, err = a.collectPersistentVolumes(ctx)
	case models.KindAddress:
		out, err = a.collectLoadBalancers(ctx, filter.Region)
	default:
		return nil, fmt.Errorf("kubernetes %s: %w", kind, providers.ErrUnsupportedKind)
	}
	if err != nil {
		return nil, err
	}
	return providers.Dedupe(out), nil
}

func (a *Adapter) collectPersistentVolumes(ctx context.Context) ([]models.Resource, error) {
	var out []models.Resource
	opts := metav1.ListOptions{Limit: listPageSize}
	for {
		list, err := a.client.CoreV1().PersistentVolumes().List(ctx, opts)
		if err != nil {
			return nil, wrapError(err, "persistentvolumes.list", models.GlobalRegion, models.KindVolume, "")
		}
		for i := range list.Items {
			out = append(out, persistentVolumeResource(&list.Items[i]))
		}
		if list.Continue == "" {
			break
		}
		opts.Continue = list.Continue
	}
	return out, nil
}

func persistentVolumeResource(pv *corev1.PersistentVolume) models.Resource {
	attrs := map[string]any{
		models.AttrName:       pv.Name,
		models.AttrState:      string(pv.Status.Phase),
		models.AttrAttached:   pv.Status.Phase == corev1.VolumeBound,
		models.AttrVolumeType: pv.Spec.StorageClassName,
		"reclaim_policy":      string(pv.Spec.PersistentVolumeReclaimPolicy),
	}
	if ref := pv.Spec.ClaimRef; ref != nil && pv.Status.Phase == corev1.VolumeBound {
		attrs[models.AttrAttachedTo] = ref.Namespace + "/" + ref.Name
	}

	var size *float64
	if q, ok := pv.Spec.Capacity[corev1.ResourceStorage]; ok {
		size = models.Float64(float64(q.Value()) / (1 << 30))
	}
	return models.Resource{
		ID:         pv.Name,
		Kind:       models.KindVolume,
		Provider:   models.ProviderKubernetes,
		Region:     models.GlobalRegion,
		SizeGB:     size,
		CreatedAt:  pv.CreationTimestamp.Time.UTC(),
		Tags:       copyLabels(pv.Labels),
		Attributes: attrs,
	}
}

// collectLoadBalancers lists LoadBalancer Services in namespace. A Service
// counts as attached when at least one endpoint behind it is ready.
func (a *Adapter) collectLoadBalancers(ctx context.Context, namespace string) ([]models.Resource, error) {
	ready, err := a.readyEndpoints(ctx, namespace)
	if err != nil {
		return nil, err
	}

	var out []models.Resource
	opts := metav1.ListOptions{Limit: listPageSize}
	for {
		list, err := a.client.CoreV1().Services(namespace).List(ctx, opts)
		if err != nil {
			return nil, wrapError(err, "services.list", namespace, models.KindAddress, "")
		}
		for _, svc := range list.Items {
			if svc.Spec.Type != corev1.ServiceTypeLoadBalancer {
				continue
			}
			count := ready[svc.Name]
			attrs := map[string]any{
				models.AttrName:        svc.Name,
				models.AttrNamespace:   svc.Namespace,
				models.AttrAttached:    count > 0,
				models.AttrTargetCount: count,
			}
			if ing := svc.Status.LoadBalancer.Ingress; len(ing) > 0 {
				if ing[0].IP != "" {
					attrs["public_ip"] = ing[0].IP
				} else {
					attrs["public_ip"] = ing[0].Hostname
				}
			}
			out = append(out, models.Resource{
				ID:         svc.Namespace + "/" + svc.Name,
				Kind:       models.KindAddress,
				Provider:   models.ProviderKubernetes,
				Region:     svc.Namespace,
				CreatedAt:  svc.CreationTimestamp.Time.UTC(),
				Tags:       copyLabels(svc.Labels),
				Attributes: attrs,
			})
		}
		if list.Continue == "" {
			break
		}
		opts.Continue = list.Continue
	}
	return out, nil
}

// readyEndpoints counts ready endpoints per Service name in namespace.
func (a *Adapter) readyEndpoints(ctx context.Context, namespace string) (map[string]int, error) {
	counts := make(map[string]int)
	opts := metav1.ListOptions{Limit: listPageSize}
	for {
		list, err := a.client.DiscoveryV1().EndpointSlices(namespace).List(ctx, opts)
		if err != nil {
			return nil, wrapError(err, "endpointslices.list", namespace, models.KindAddress, "")
		}
		for _, slice := range list.Items {
			svc := slice.Labels[discoveryv1.LabelServiceName]
			if svc == "" {
				continue
			}
			for _, ep := range slice.Endpoints {
				if ep.Conditions.Ready == nil || *ep.Conditions.Ready {
					counts[svc]++
				}
			}
		}
		if list.Continue == "" {
			break
		}
		opts.Continue = list.Continue
	}
	return counts, nil
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// ClassifyError maps an API server status error onto an auditerr.Reason.
func ClassifyError(err error) auditerr.Reason {
	switch {
	case apierrors.IsNotFound(err):
		return auditerr.ReasonNotFound
	case apierrors.IsUnauthorized(err), apierrors.IsForbidden(err):
		return auditerr.ReasonAuth
	case apierrors.IsTooManyRequests(err):
		return auditerr.ReasonRateLimit
	case apierrors.IsTimeout(err), apierrors.IsServerTimeout(err):
		return auditerr.ReasonTimeout
	case apierrors.IsServiceUnavailable(err), apierrors.IsInternalError(err):
		return auditerr.ReasonNetwork
	}
	return auditerr.Classify(err)
}

func wrapError(err error, op, region string, kind models.Kind, id string) error {
	if err == nil {
		return nil
	}
	return &auditerr.ProviderError{
		Provider:   models.ProviderKubernetes,
		Op:         op,
		Region:     region,
		Kind:       kind,
		ResourceID: id,
		Reason:     ClassifyError(err),
		Err:        err,
	}
}
