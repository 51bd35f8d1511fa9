package main

import (
	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/engine"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/policy"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/ui"
)

func newRulesCmd() *cobra.Command {
	var policyPath string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List built-in and custom rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				pol *policy.PolicyConfig
				err error
			)
			if policyPath != "" {
				if pol, err = engine.LoadPolicy(policyPath); err != nil {
					return &exitError{code: engine.ExitAborted, err: err}
				}
			}
			catalog, err := engine.CatalogRules(pol)
			if err != nil {
				return &exitError{code: engine.ExitAborted, err: err}
			}

			rows := make([]ui.RuleRow, 0, len(catalog))
			for _, pr := range catalog {
				rows = append(rows, ui.RuleRow{
					ID:       pr.Rule.ID(),
					Pack:     pr.Pack,
					Name:     pr.Rule.Name(),
					Severity: policy.EffectiveSeverity(pol, pr.Rule.ID(), pr.Rule.Severity()),
					Action:   pr.Rule.Action(),
					Kinds:    pr.Rule.Target().Kinds,
					Enabled:  policy.RuleEnabled(pol, pr.Pack, pr.Rule.ID()),
				})
			}
			return ui.PrintRules(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVar(&policyPath, "policy", "", "Policy file whose overrides and custom rules to include")
	return cmd
}
