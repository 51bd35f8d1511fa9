// Package engine orchestrates one audit run: it lists resources through a
// provider adapter, classifies them against the active rules, prices the
// findings, optionally remediates them and assembles the AuditRun.
//
// Engine never calls a cloud SDK directly; everything provider-specific sits
// behind providers.Adapter.
package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/config"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/executor"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/policy"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/pricing"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/retry"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/rules"
)

// Options configures an Engine. The zero value is usable.
type Options struct {
	// Policy overrides the policy file named by Config.PolicyPath. Callers
	// that already loaded it (the CLI, for enforcement) pass it here.
	Policy *policy.PolicyConfig

	// Confirmer answers applyWithConfirm prompts.
	Confirmer executor.Confirmer

	// Retry is the backoff for transient listing errors. Zero means
	// retry.DefaultPolicy.
	Retry retry.Policy

	// Now is the run clock. Nil means time.Now in UTC.
	Now func() time.Time
}

// Engine runs audits against one provider adapter.
type Engine struct {
	adapter   providers.Adapter
	policy    *policy.PolicyConfig
	confirmer executor.Confirmer
	retry     retry.Policy
	now       func() time.Time
}

// New constructs an Engine wired to adapter.
func New(adapter providers.Adapter, opts Options) *Engine {
	e := &Engine{
		adapter:   adapter,
		policy:    opts.Policy,
		confirmer: opts.Confirmer,
		retry:     opts.Retry,
		now:       opts.Now,
	}
	if e.retry.Attempts == 0 {
		e.retry = retry.DefaultPolicy
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	return e
}

// Run executes one audit. The returned error is non-nil only for problems
// that prevent the run from starting: an invalid configuration, policy or
// price table, or a failed region discovery. Everything else, from a
// region outage to a failed remediation, is recorded in AuditRun.Errors.
func (e *Engine) Run(ctx context.Context, cfg config.Config) (*models.AuditRun, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := zerolog.Ctx(ctx).With().Str("provider", string(e.adapter.Provider())).Logger()
	ctx = logger.WithContext(ctx)

	pol := e.policy
	if pol == nil && cfg.PolicyPath != "" {
		loaded, err := LoadPolicy(cfg.PolicyPath)
		if err != nil {
			return nil, err
		}
		pol = loaded
	}

	table, err := pricing.Load(cfg.PriceTablePath, cfg.PriceTableVersion)
	if err != nil {
		return nil, err
	}
	estimator := pricing.NewEstimator(table)

	active, err := ActiveRules(pol)
	if err != nil {
		return nil, err
	}

	run := &models.AuditRun{
		ID:                uuid.NewString(),
		StartedAt:         e.now(),
		Provider:          e.adapter.Provider(),
		Mode:              cfg.Mode,
		PriceTableVersion: estimator.Version(),
		Findings:          []models.Finding{},
		ActionResults:     []models.ActionResult{},
		Errors:            []models.RunError{},
	}
	logger.Info().Str("run", run.ID).Str("mode", string(cfg.Mode)).Msg("audit started")

	tasks, taskErrs, err := e.plan(ctx, cfg)
	if err != nil {
		return nil, err
	}
	run.Errors = append(run.Errors, taskErrs...)
	for _, t := range tasks {
		if len(run.KindsScanned) == 0 || run.KindsScanned[len(run.KindsScanned)-1] != t.kind {
			run.KindsScanned = append(run.KindsScanned, t.kind)
		}
	}

	listed := e.list(ctx, tasks, cfg.ConcurrencyListing)
	resources, scanned, listErrs := merge(tasks, listed)
	run.Errors = append(run.Errors, listErrs...)
	run.RegionsScanned = scanned
	run.ResourcesScanned = len(resources)

	kept := resources[:0:0]
	for _, r := range resources {
		if policy.Excluded(pol, r) {
			logger.Debug().Str("resource", r.ID).Msg("excluded by policy tag")
			continue
		}
		kept = append(kept, r)
	}

	findings, ruleErrs := rules.Classify(ctx, kept, active, rules.ClassifyOptions{
		Concurrency: cfg.ConcurrencyListing,
		Policy:      pol,
		Now:         run.StartedAt,
	})
	run.Errors = append(run.Errors, ruleErrs...)

	for _, f := range policy.ApplyPolicy(findings, pol) {
		if !f.Severity.AtLeast(cfg.MinSeverity) {
			continue
		}
		f.EstimatedMonthlyCost = estimator.Estimate(f.Resource)
		run.Findings = append(run.Findings, f)
	}

	if cfg.Mode != models.ModeReportOnly {
		exec := executor.New(e.adapter, executor.Options{
			Confirmer:   e.confirmer,
			Concurrency: cfg.ConcurrencyAction,
			Now:         e.now,
		})
		run.ActionResults = exec.ExecuteAll(ctx, actionable(run.Findings, cfg.ActionKinds), cfg.Mode)
		for _, r := range run.ActionResults {
			if r.Error != nil {
				run.Errors = append(run.Errors, *r.Error)
			}
		}
	}

	run.TotalEstimatedMonthlySavings = savings(run.Findings, run.ActionResults, cfg.Mode)
	run.FinishedAt = e.now()

	logger.Info().
		Str("run", run.ID).
		Int("resources", run.ResourcesScanned).
		Int("findings", len(run.Findings)).
		Int("errors", len(run.Errors)).
		Dur("elapsed", run.FinishedAt.Sub(run.StartedAt)).
		Msg("audit finished")
	return run, nil
}

// LoadPolicy reads and validates the policy file at path against the
// built-in rule IDs. Every failure is a ConfigError.
func LoadPolicy(path string) (*policy.PolicyConfig, error) {
	pol, err := policy.LoadPolicy(path)
	if err != nil {
		return nil, &auditerr.ConfigError{Field: "policy", Err: err}
	}
	if errs := policy.Validate(pol, BuiltinRuleIDs()); len(errs) > 0 {
		return nil, &auditerr.ConfigError{Field: "policy", Err: errors.Join(errs...)}
	}
	return pol, nil
}

// actionable narrows findings to the kinds remediation is allowed on.
func actionable(findings []models.Finding, kinds []models.Kind) []models.Finding {
	if len(kinds) == 0 {
		return findings
	}
	allowed := make(map[models.Kind]struct{}, len(kinds))
	for _, k := range kinds {
		allowed[k] = struct{}{}
	}
	var out []models.Finding
	for _, f := range findings {
		if _, ok := allowed[f.Resource.Kind]; ok {
			out = append(out, f)
		}
	}
	return out
}

// savings totals the monthly cost removed by the run. In reportOnly and
// dryRun every priced finding counts as potential savings; otherwise only
// delete and stop actions that succeeded count.
func savings(findings []models.Finding, results []models.ActionResult, mode models.Mode) decimal.Decimal {
	total := decimal.Zero
	if mode == models.ModeReportOnly || mode == models.ModeDryRun {
		for _, f := range findings {
			if f.EstimatedMonthlyCost != nil {
				total = total.Add(*f.EstimatedMonthlyCost)
			}
		}
		return total
	}

	succeeded := make(map[string]bool, len(results))
	for _, r := range results {
		if r.Succeeded {
			succeeded[r.FindingID] = true
		}
	}
	for _, f := range findings {
		if f.EstimatedMonthlyCost == nil || !succeeded[f.ID] {
			continue
		}
		if f.Action == models.ActionDelete || f.Action == models.ActionStop {
			total = total.Add(*f.EstimatedMonthlyCost)
		}
	}
	return total
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
