package main

import (
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/config"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/engine"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/executor"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/history"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/output"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/policy"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/ui"
)

func newAuditCmd(newAdapter adapterFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List resources, classify them against rules and optionally remediate",
		Long: `Audit enumerates resources of the selected provider, evaluates the cost and
security rule packs plus any custom rules from the policy file, estimates the
monthly cost of each finding and, outside reportOnly mode, remediates them.

Exit codes:
  0  run completed; no finding at or above the enforcement severity is left unresolved
  1  run completed with unresolved findings at or above the enforcement severity
  2  run aborted by a configuration or provider error before producing findings`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, newAdapter)
		},
	}

	f := cmd.Flags()
	f.String("provider", "", "Provider: aws, gcp, azure, kubernetes or fixture")
	f.StringSlice("region", nil, "Region(s) to audit; namespaces for kubernetes (default: discover)")
	f.StringSlice("kind", nil, "Resource kind(s) to list (default: every kind the provider supports)")
	f.String("mode", string(models.ModeReportOnly), "reportOnly, dryRun, applyWithConfirm or applyForce")
	f.String("min-severity", string(models.SeverityLow), "Drop findings below this severity")
	f.String("output", config.OutputTable, "Output format: table, json or summary")
	f.StringSlice("action-kind", nil, "Only remediate findings on these kinds")
	f.Int("concurrency-listing", 8, "Concurrent listing calls")
	f.Int("concurrency-action", 2, "Concurrent remediation actions")
	f.String("price-table-version", "", "Require this price table version")
	f.String("price-table", "", "Price table YAML file (default: embedded sample table)")
	f.String("policy", "", "Policy file")
	f.String("history", "", "Append the finished run to this JSON lines file")
	f.String("profile", "", "AWS profile, or Azure config profile")
	f.String("project", "", "GCP project id")
	f.String("subscription", "", "Azure subscription id")
	f.String("kube-context", "", "Kubernetes context (default: current context)")
	f.String("kubeconfig", "", "Kubeconfig path (default: $KUBECONFIG or ~/.kube/config)")
	f.String("fixture", "", "Fixture JSON file for --provider fixture")
	return cmd
}

func runAudit(cmd *cobra.Command, newAdapter adapterFactory) error {
	ctx := cmd.Context()
	logger := zerolog.Ctx(ctx)

	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return &exitError{code: engine.ExitAborted, err: err}
	}
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return &exitError{code: engine.ExitAborted, err: err}
	}

	var pol *policy.PolicyConfig
	if cfg.PolicyPath != "" {
		if pol, err = engine.LoadPolicy(cfg.PolicyPath); err != nil {
			return &exitError{code: engine.ExitAborted, err: err}
		}
	}

	adapter, err := newAdapter(ctx, cfg)
	if err != nil {
		return &exitError{code: engine.ExitAborted, err: err}
	}

	var confirmer executor.Confirmer
	if cfg.Mode == models.ModeApplyWithConfirm {
		if isTerminal(cmd.InOrStdin()) {
			confirmer = ui.NewTerminalConfirmer()
		} else {
			confirmer = ui.NewLineConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
		}
	}

	var spinner *pterm.SpinnerPrinter
	if isTerminal(cmd.ErrOrStderr()) && cfg.Mode != models.ModeApplyWithConfirm {
		spinner = ui.StartSpinner("Auditing " + string(cfg.Provider) + "...")
	}
	run, err := engine.New(adapter, engine.Options{Policy: pol, Confirmer: confirmer}).Run(ctx, cfg)
	ui.StopSpinner(spinner, err)
	if err != nil {
		return &exitError{code: engine.ExitAborted, err: err}
	}

	if cfg.HistoryPath != "" {
		if err := history.Append(cfg.HistoryPath, run); err != nil {
			logger.Warn().Err(err).Msg("could not record run history")
		}
	}

	opts := output.TableOptions{Colored: isTerminal(cmd.OutOrStdout())}
	if cfg.Provider == models.ProviderKubernetes {
		opts.LocationLabel = "NAMESPACE"
	}
	if err := output.Render(cmd.OutOrStdout(), run, cfg.Output, opts); err != nil {
		return &exitError{code: engine.ExitAborted, err: err}
	}

	if code := engine.ExitCode(run, nil, policy.FailThreshold(pol)); code != engine.ExitOK {
		return &exitError{code: code}
	}
	return nil
}
