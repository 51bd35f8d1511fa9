package kubernetes

import (
	"fmt"
	"os"
	"path/filepath"

	k8sclient "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// ClusterInfo identifies the cluster an adapter talks to.
type ClusterInfo struct {
	ContextName string
	Server      string
}

// KubeClientProvider creates clientsets for named kubeconfig contexts so
// tests can inject a fake clientset without touching the filesystem.
type KubeClientProvider interface {
	// ClientsetForContext returns a clientset for contextName; "" selects the
	// kubeconfig's current context.
	ClientsetForContext(contextName string) (k8sclient.Interface, ClusterInfo, error)
}

// DefaultKubeClientProvider loads $KUBECONFIG or ~/.kube/config.
type DefaultKubeClientProvider struct {
	Path string
}

func NewDefaultKubeClientProvider() *DefaultKubeClientProvider {
	return &DefaultKubeClientProvider{Path: resolveKubeconfigPath()}
}

func (p *DefaultKubeClientProvider) ClientsetForContext(contextName string) (k8sclient.Interface, ClusterInfo, error) {
	return LoadClientset(p.Path, contextName)
}

func resolveKubeconfigPath() string {
	if path := os.Getenv("KUBECONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kube", "config")
}

// LoadClientset builds a clientset from the kubeconfig at path for
// contextName and reports the context and API server it resolved to.
func LoadClientset(kubeconfigPath, contextName string) (k8sclient.Interface, ClusterInfo, error) {
	rules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: contextName}
	cfg := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides)

	raw, err := cfg.RawConfig()
	if err != nil {
		return nil, ClusterInfo{}, fmt.Errorf("load kubeconfig %q: %w", kubeconfigPath, err)
	}
	info := ClusterInfo{ContextName: raw.CurrentContext}
	if contextName != "" {
		info.ContextName = contextName
	}
	if kctx, ok := raw.Contexts[info.ContextName]; ok {
		if cluster, ok := raw.Clusters[kctx.Cluster]; ok {
			info.Server = cluster.Server
		}
	}

	restCfg, err := cfg.ClientConfig()
	if err != nil {
		return nil, ClusterInfo{}, fmt.Errorf("build REST config for context %q: %w", info.ContextName, err)
	}
	clientset, err := k8sclient.NewForConfig(restCfg)
	if err != nil {
		return nil, ClusterInfo{}, fmt.Errorf("build clientset for context %q: %w", info.ContextName, err)
	}
	return clientset, info, nil
}
