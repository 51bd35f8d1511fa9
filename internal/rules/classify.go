package rules

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"text/template"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/policy"
)

// DefaultConcurrency bounds the classification worker pool when
// ClassifyOptions.Concurrency is not set.
const DefaultConcurrency = 8

// ClassifyOptions configures a Classify call.
type ClassifyOptions struct {
	Concurrency int
	Policy      *policy.PolicyConfig
	// Now is the evaluation instant handed to every rule and stamped on each
	// finding. Zero means time.Now().
	Now time.Time
}

// ReasonData is the value a rule's reason template is executed against.
type ReasonData struct {
	ID       string
	Kind     string
	Provider string
	Region   string
	// Size is the formatted size in GB; HasSize reports whether it is known.
	Size    string
	HasSize bool
	Tags    map[string]string
	Attr    map[string]any
	AgeDays int
	Rule    string
}

type compiledRule struct {
	rule   Rule
	reason *template.Template
}

// Classify evaluates every rule against every resource it targets and
// returns the findings in resource order, then rule order. Rule failures
// (errors, panics, unrenderable reasons) skip that resource/rule pair and are
// returned as PolicyError run errors; they never abort classification.
func Classify(ctx context.Context, resources []models.Resource, rules []Rule, opts ClassifyOptions) ([]models.Finding, []models.RunError) {
	logger := zerolog.Ctx(ctx)

	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var runErrs []models.RunError
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		tmpl, err := template.New(rule.ID()).Option("missingkey=zero").Parse(rule.ReasonTemplate())
		if err != nil {
			perr := &auditerr.PolicyError{RuleID: rule.ID(), Err: fmt.Errorf("reason template: %w", err)}
			logger.Warn().Err(perr).Msg("rule disabled")
			runErrs = append(runErrs, auditerr.ToRunError(perr))
			continue
		}
		compiled = append(compiled, compiledRule{rule: rule, reason: tmpl})
	}

	type slot struct {
		findings []models.Finding
		errs     []models.RunError
	}
	slots := make([]slot, len(resources))

	var g errgroup.Group
	g.SetLimit(limit)
	for i := range resources {
		g.Go(func() error {
			slots[i].findings, slots[i].errs = classifyOne(logger, resources[i], compiled, opts.Policy, now)
			return nil
		})
	}
	_ = g.Wait()

	var findings []models.Finding
	for _, s := range slots {
		findings = append(findings, s.findings...)
		runErrs = append(runErrs, s.errs...)
	}
	return findings, runErrs
}

func classifyOne(logger *zerolog.Logger, res models.Resource, rules []compiledRule, cfg *policy.PolicyConfig, now time.Time) ([]models.Finding, []models.RunError) {
	var (
		findings []models.Finding
		errs     []models.RunError
	)
	rc := RuleContext{Resource: res, Policy: cfg, Now: now}
	for _, cr := range rules {
		if !cr.rule.Target().Matches(res) {
			continue
		}
		matched, err := safeEvaluate(cr.rule, rc)
		if err == nil && !matched {
			continue
		}
		var reason string
		if err == nil {
			reason, err = renderReason(cr, res, now)
		}
		if err != nil {
			perr := &auditerr.PolicyError{RuleID: cr.rule.ID(), ResourceID: res.ID, Err: err}
			logger.Warn().
				Str("rule", cr.rule.ID()).
				Str("resource", res.ID).
				Err(err).
				Msg("rule evaluation failed; skipping")
			errs = append(errs, auditerr.ToRunError(perr))
			continue
		}
		findings = append(findings, models.Finding{
			ID:         models.FindingID(cr.rule.ID(), res),
			RuleID:     cr.rule.ID(),
			RuleName:   cr.rule.Name(),
			Severity:   cr.rule.Severity(),
			Reason:     reason,
			Action:     cr.rule.Action(),
			Resource:   res,
			DetectedAt: now,
		})
	}
	return findings, errs
}

// safeEvaluate converts a panicking rule into an error.
func safeEvaluate(rule Rule, rc RuleContext) (matched bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			matched, err = false, fmt.Errorf("rule panicked: %v", p)
		}
	}()
	return rule.Evaluate(rc)
}

func renderReason(cr compiledRule, res models.Resource, now time.Time) (string, error) {
	data := ReasonData{
		ID:       res.ID,
		Kind:     string(res.Kind),
		Provider: string(res.Provider),
		Region:   res.Region,
		Tags:     res.Tags,
		Attr:     res.Attributes,
		Rule:     cr.rule.Name(),
	}
	if res.SizeGB != nil {
		data.HasSize = true
		data.Size = strconv.FormatFloat(*res.SizeGB, 'f', -1, 64)
	}
	if !res.CreatedAt.IsZero() {
		data.AgeDays = int(ageDays(now, res.CreatedAt))
	}
	var buf bytes.Buffer
	if err := cr.reason.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("reason template: %w", err)
	}
	return buf.String(), nil
}
