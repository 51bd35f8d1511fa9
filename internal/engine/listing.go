package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/config"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/retry"
)

// task is one independent listing call.
type task struct {
	kind   models.Kind
	region string
}

func (t task) describe() string {
	return fmt.Sprintf("%s/%s", t.kind, t.region)
}

type listResult struct {
	resources []models.Resource
	err       error
}

// plan expands the configured kinds and regions into listing tasks in
// (kind, region) order. Kinds the adapter cannot list become ProviderError
// run errors. Region discovery only happens when a regional kind is
// selected and no regions were configured; its failure aborts the run.
func (e *Engine) plan(ctx context.Context, cfg config.Config) ([]task, []models.RunError, error) {
	var (
		specs []providers.KindSpec
		errs  []models.RunError
	)
	if len(cfg.Kinds) == 0 {
		specs = e.adapter.Kinds()
	} else {
		for _, k := range cfg.Kinds {
			spec, ok := providers.LookupKind(e.adapter, k)
			if !ok {
				errs = append(errs, auditerr.ToRunError(&auditerr.ProviderError{
					Provider: e.adapter.Provider(),
					Op:       "list " + string(k),
					Kind:     k,
					Reason:   auditerr.ReasonUnknown,
					Err:      providers.ErrUnsupportedKind,
				}))
				continue
			}
			specs = append(specs, spec)
		}
	}

	regions := cfg.Regions
	if len(regions) == 0 && needsRegions(specs) {
		err := retry.Do(ctx, e.retry, func(ctx context.Context) error {
			var err error
			regions, err = e.adapter.Regions(ctx)
			return err
		})
		if err != nil {
			return nil, nil, fmt.Errorf("discover regions: %w", err)
		}
	}

	var tasks []task
	for _, spec := range specs {
		if spec.Global {
			tasks = append(tasks, task{kind: spec.Kind, region: models.GlobalRegion})
			continue
		}
		for _, region := range regions {
			tasks = append(tasks, task{kind: spec.Kind, region: region})
		}
	}
	return tasks, errs, nil
}

func needsRegions(specs []providers.KindSpec) bool {
	for _, s := range specs {
		if !s.Global {
			return true
		}
	}
	return false
}

// list runs every task on a pool bounded by concurrency. Results are stored
// by task index so merging never depends on completion order.
func (e *Engine) list(ctx context.Context, tasks []task, concurrency int) []listResult {
	logger := zerolog.Ctx(ctx)
	results := make([]listResult, len(tasks))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, t := range tasks {
		g.Go(func() error {
			var resources []models.Resource
			err := retry.Do(ctx, e.retry, func(ctx context.Context) error {
				var err error
				resources, err = e.adapter.ListResources(ctx, t.kind, providers.Filter{Region: t.region})
				return err
			})
			if err != nil {
				logger.Warn().Err(err).Str("task", t.describe()).Msg("listing failed")
				results[i] = listResult{err: err}
				return nil
			}
			logger.Debug().Str("task", t.describe()).Int("resources", len(resources)).Msg("listed")
			results[i] = listResult{resources: resources}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// merge concatenates successful listings in task order, drops duplicate
// IDs, and returns the sorted set of regions that listed successfully plus
// one PartialFailure per failed task.
func merge(tasks []task, results []listResult) ([]models.Resource, []string, []models.RunError) {
	var (
		all     []models.Resource
		errs    []models.RunError
		scanned = make(map[string]struct{})
	)
	for i, res := range results {
		t := tasks[i]
		if res.err != nil {
			errs = append(errs, auditerr.ToRunError(&auditerr.PartialFailure{Kind: t.kind, Region: t.region, Err: res.err}))
			continue
		}
		scanned[t.region] = struct{}{}
		all = append(all, res.resources...)
	}
	return providers.Dedupe(all), sortedKeys(scanned), errs
}
