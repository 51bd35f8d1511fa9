// Package executor applies remediation actions to findings.
//
// Each finding runs through a small state machine:
//
//	dryRun:            pending → reported
//	applyWithConfirm:  pending → awaiting confirm → skipped | applying
//	applyForce:        pending → applying
//	applying:          backup → mutate → applied | failed
//
// At most one finding per resource runs the machine at a time. Mutations are
// never retried, and once started they run to completion even if the run is
// cancelled.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
)

// DefaultConcurrency bounds ExecuteAll when Options.Concurrency is not set.
const DefaultConcurrency = 2

// Confirmer asks an operator whether a finding may be remediated.
type Confirmer interface {
	Confirm(ctx context.Context, f models.Finding) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, f models.Finding) (bool, error)

func (fn ConfirmFunc) Confirm(ctx context.Context, f models.Finding) (bool, error) {
	return fn(ctx, f)
}

type Options struct {
	// Confirmer is required for ModeApplyWithConfirm.
	Confirmer   Confirmer
	Concurrency int
	Now         func() time.Time
}

// Executor remediates findings through one provider adapter.
type Executor struct {
	adapter     providers.Adapter
	confirmer   Confirmer
	concurrency int
	now         func() time.Time
	locks       *keyedMutex
}

func New(adapter providers.Adapter, opts Options) *Executor {
	e := &Executor{
		adapter:     adapter,
		confirmer:   opts.Confirmer,
		concurrency: opts.Concurrency,
		now:         opts.Now,
		locks:       newKeyedMutex(),
	}
	if e.concurrency <= 0 {
		e.concurrency = DefaultConcurrency
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	return e
}

// ExecuteAll runs Execute for every finding on a bounded pool. Results are
// returned in finding order.
func (e *Executor) ExecuteAll(ctx context.Context, findings []models.Finding, mode models.Mode) []models.ActionResult {
	results := make([]models.ActionResult, len(findings))
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range findings {
		g.Go(func() error {
			results[i] = e.Execute(ctx, findings[i], mode)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Execute drives one finding through the state machine and returns its
// terminal result. It never panics on adapter failures and never returns
// without a terminal state.
func (e *Executor) Execute(ctx context.Context, f models.Finding, mode models.Mode) models.ActionResult {
	logger := zerolog.Ctx(ctx).With().
		Str("finding", f.ID).
		Str("resource", f.Resource.ID).
		Str("action", string(f.Action)).
		Logger()

	res := models.ActionResult{
		FindingID:  f.ID,
		ResourceID: f.Resource.ID,
		Action:     f.Action,
		StartedAt:  e.now(),
	}
	done := func(state models.ActionState, msg string, err error) models.ActionResult {
		res.State = state
		res.Message = msg
		res.Succeeded = state == models.ActionStateApplied
		if err != nil {
			re := auditerr.ToRunError(err)
			res.Error = &re
		}
		res.FinishedAt = e.now()
		return res
	}

	switch mode {
	case models.ModeReportOnly:
		return done(models.ActionStateReported, "report only", nil)
	case models.ModeDryRun:
		res.DryRun = true
		return done(models.ActionStateReported, fmt.Sprintf("would %s %s", f.Action, f.Resource.ID), nil)
	case models.ModeApplyWithConfirm, models.ModeApplyForce:
	default:
		return done(models.ActionStateFailed, "", auditerr.NewConfigError("mode", "unsupported mode %q", mode))
	}

	if f.Action == models.ActionNone || f.Action == "" {
		return done(models.ActionStateSkipped, "no remediation action for this rule", nil)
	}

	unlock, err := e.locks.lock(ctx, lockKey(f.Resource))
	if err != nil {
		return done(models.ActionStateSkipped, "cancelled before remediation started", nil)
	}
	defer unlock()

	if mode == models.ModeApplyWithConfirm {
		if e.confirmer == nil {
			return done(models.ActionStateFailed, "", auditerr.NewConfigError("mode", "applyWithConfirm requires an interactive confirmer"))
		}
		ok, err := e.confirmer.Confirm(ctx, f)
		if err != nil {
			if ctx.Err() != nil {
				return done(models.ActionStateSkipped, "cancelled while awaiting confirmation", nil)
			}
			return done(models.ActionStateFailed, "", fmt.Errorf("confirm: %w", err))
		}
		if !ok {
			logger.Info().Msg("remediation declined")
			return done(models.ActionStateSkipped, "declined by operator", nil)
		}
	}

	if ctx.Err() != nil {
		return done(models.ActionStateSkipped, "cancelled before remediation started", nil)
	}

	res.Attempted = true
	undo, err := e.adapter.Backup(ctx, f.Resource, f.Action)
	switch {
	case err == nil:
	case auditerr.IsNotFound(err) && f.Action.Destructive():
		// Nothing left to back up; Mutate treats the missing resource as done.
		logger.Info().Msg("resource already gone; skipping backup")
	default:
		logger.Warn().Err(err).Msg("backup failed; action not attempted")
		return done(models.ActionStateFailed, "", &auditerr.PrecheckFailed{ResourceID: f.Resource.ID, Action: f.Action, Err: err})
	}
	res.UndoReference = undo

	if ctx.Err() != nil {
		return done(models.ActionStateSkipped, "cancelled after backup; mutation not started", nil)
	}

	// The remote call is issued from here on; let it finish.
	if err := e.adapter.Mutate(context.WithoutCancel(ctx), f.Resource, f.Action); err != nil {
		if errors.Is(err, providers.ErrUnsupportedAction) {
			return done(models.ActionStateFailed, "", &auditerr.ProviderError{
				Provider: f.Resource.Provider, Op: string(f.Action), Region: f.Resource.Region,
				Kind: f.Resource.Kind, ResourceID: f.Resource.ID, Reason: auditerr.ReasonUnknown, Err: err,
			})
		}
		logger.Warn().Err(err).Msg("remediation failed")
		return done(models.ActionStateFailed, "", err)
	}

	logger.Info().Str("undo", undo).Msg("remediation applied")
	return done(models.ActionStateApplied, "", nil)
}

func lockKey(r models.Resource) string {
	return string(r.Provider) + "/" + providers.Key(r)
}
