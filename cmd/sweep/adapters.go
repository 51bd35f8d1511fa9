package main

import (
	"context"
	"fmt"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/config"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
	awsprovider "github.com/pankaj-dahiya-devops/cloudsweep/internal/providers/aws"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers/azure"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers/fixture"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers/gcp"
	kube "github.com/pankaj-dahiya-devops/cloudsweep/internal/providers/kubernetes"
)

// adapterFactory builds the provider adapter selected by cfg.
type adapterFactory func(ctx context.Context, cfg config.Config) (providers.Adapter, error)

func defaultAdapterFactory(ctx context.Context, cfg config.Config) (providers.Adapter, error) {
	switch cfg.Provider {
	case models.ProviderAWS:
		a, err := awsprovider.New(ctx, common.NewDefaultAWSClientProvider(), cfg.Profile)
		if err != nil {
			return nil, fmt.Errorf("load AWS profile %q: %w", cfg.Profile, err)
		}
		return a, nil

	case models.ProviderGCP:
		return gcp.New(ctx, cfg.Project)

	case models.ProviderAzure:
		sub := cfg.Subscription
		if sub == "" {
			var err error
			if sub, err = azure.SubscriptionFromConfig("", cfg.Profile); err != nil {
				return nil, &auditerr.ConfigError{Field: "subscription", Err: err}
			}
		}
		return azure.New(sub)

	case models.ProviderKubernetes:
		p := kube.NewDefaultKubeClientProvider()
		if cfg.Kubeconfig != "" {
			p.Path = cfg.Kubeconfig
		}
		return kube.New(p, cfg.KubeContext)

	case models.ProviderFixture:
		a, err := fixture.Load(cfg.FixturePath)
		if err != nil {
			return nil, &auditerr.ConfigError{Field: "fixture", Err: err}
		}
		return a, nil
	}
	return nil, auditerr.NewConfigError("provider", "unsupported provider %q", cfg.Provider)
}
