package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/config"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/engine"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/pricing"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers/aws/common"
	kube "github.com/pankaj-dahiya-devops/cloudsweep/internal/providers/kubernetes"
)

// defaultPolicyFile is checked by doctor when --policy is not given.
const defaultPolicyFile = "sweep.yaml"

// DoctorResult is the structured output of sweep doctor. It can be serialised
// to JSON via --format=json or rendered as a human-readable table (default).
type DoctorResult struct {
	Provider struct {
		Name        string `json:"name,omitempty"`
		Credentials bool   `json:"credentials_ok"`
		Identity    string `json:"identity,omitempty"`
		RegionsOK   bool   `json:"regions_ok"`
		Regions     int    `json:"regions"`
		Error       string `json:"error,omitempty"`

		// Profiles lists the AWS shared-config profiles; aws only.
		Profiles []string `json:"profiles,omitempty"`
	} `json:"provider"`

	Policy struct {
		Path    string   `json:"path,omitempty"`
		Present bool     `json:"present"`
		Valid   bool     `json:"valid"`
		Errors  []string `json:"errors,omitempty"`
	} `json:"policy"`

	PriceTable struct {
		Version string `json:"version,omitempty"`
		OK      bool   `json:"ok"`
		Error   string `json:"error,omitempty"`
	} `json:"price_table"`

	OverallHealthy bool `json:"overall_healthy"`
}

// doctorInput is the subset of configuration doctor checks. Unlike audit,
// no provider is required.
type doctorInput struct {
	cfg               config.Config
	policyPath        string
	priceTable        string
	priceTableVersion string
}

func newDoctorCmd(newAdapter adapterFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check credentials, policy file and price table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := config.New()
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return &exitError{code: engine.ExitAborted, err: err}
			}
			in, err := doctorInputFrom(v)
			if err != nil {
				return &exitError{code: engine.ExitAborted, err: err}
			}
			format, _ := cmd.Flags().GetString("format")
			result, err := runDoctor(cmd.Context(), newAdapter, in, cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			if !result.OverallHealthy {
				return &exitError{code: engine.ExitUnresolved}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.String("format", "table", `Output format: "table" or "json"`)
	f.String("provider", "", "Provider whose credentials to check (default: none)")
	f.String("profile", "", "AWS profile, or Azure config profile")
	f.String("project", "", "GCP project id")
	f.String("subscription", "", "Azure subscription id")
	f.String("kube-context", "", "Kubernetes context")
	f.String("kubeconfig", "", "Kubeconfig path")
	f.String("fixture", "", "Fixture JSON file for --provider fixture")
	f.String("policy", "", "Policy file (default: ./"+defaultPolicyFile+" when present)")
	f.String("price-table", "", "Price table YAML file")
	f.String("price-table-version", "", "Required price table version")
	return cmd
}

func doctorInputFrom(v *viper.Viper) (doctorInput, error) {
	in := doctorInput{
		policyPath:        v.GetString("policy"),
		priceTable:        v.GetString("price_table"),
		priceTableVersion: v.GetString("cost_price_table_version"),
	}
	if name := strings.TrimSpace(v.GetString("provider")); name != "" {
		p, err := models.ParseProvider(name)
		if err != nil {
			return in, err
		}
		in.cfg.Provider = p
	}
	in.cfg.Profile = v.GetString("profile")
	in.cfg.Project = v.GetString("project")
	in.cfg.Subscription = v.GetString("subscription")
	in.cfg.KubeContext = v.GetString("kube_context")
	in.cfg.Kubeconfig = v.GetString("kubeconfig")
	in.cfg.FixturePath = v.GetString("fixture")
	return in, nil
}

// runDoctor collects all diagnostic results, renders them to w in the
// requested format, and returns the result.
// The returned error covers only rendering failures (e.g. JSON encode error).
// Callers must inspect result.OverallHealthy to determine whether the
// environment is healthy.
func runDoctor(ctx context.Context, newAdapter adapterFactory, in doctorInput, w io.Writer, format string) (DoctorResult, error) {
	result := collectDoctorResult(ctx, newAdapter, in)

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return result, fmt.Errorf("encode doctor result: %w", err)
		}
	default:
		renderDoctorTable(result, w)
	}
	return result, nil
}

// collectDoctorResult runs all environment checks and populates a DoctorResult.
// It performs no rendering; callers decide how to present the result.
func collectDoctorResult(ctx context.Context, newAdapter adapterFactory, in doctorInput) DoctorResult {
	var result DoctorResult

	// Provider: build adapter (loads credentials) → identity → region discovery.
	providerOK := true
	if in.cfg.Provider != "" {
		result.Provider.Name = string(in.cfg.Provider)
		providerOK = false
		if in.cfg.Provider == models.ProviderAWS {
			// Listing is informational; a malformed file surfaces again on load.
			result.Provider.Profiles, _ = common.DiscoverProfileNames()
		}
		adapter, err := newAdapter(ctx, in.cfg)
		if err != nil {
			result.Provider.Error = err.Error()
		} else {
			result.Provider.Credentials = true
			switch a := adapter.(type) {
			case interface{ AccountID() string }:
				result.Provider.Identity = "account " + a.AccountID()
			case interface{ Cluster() kube.ClusterInfo }:
				result.Provider.Identity = "context " + a.Cluster().ContextName
			}
			regions, err := adapter.Regions(ctx)
			if err != nil {
				result.Provider.Error = err.Error()
			} else {
				result.Provider.RegionsOK = true
				result.Provider.Regions = len(regions)
				providerOK = true
			}
		}
	}

	// Policy: stat → load → validate (file is optional unless named).
	path := in.policyPath
	if path == "" {
		path = defaultPolicyFile
	}
	if _, statErr := os.Stat(path); statErr == nil || in.policyPath != "" {
		result.Policy.Present = true
		result.Policy.Path = path
		if _, err := engine.LoadPolicy(path); err != nil {
			result.Policy.Errors = []string{err.Error()}
		} else {
			result.Policy.Valid = true
		}
	}

	// Price table: load and check the pinned version.
	table, err := pricing.Load(in.priceTable, in.priceTableVersion)
	if err != nil {
		result.PriceTable.Error = err.Error()
	} else {
		result.PriceTable.OK = true
		result.PriceTable.Version = table.Version
	}

	result.OverallHealthy = providerOK &&
		(!result.Policy.Present || result.Policy.Valid) &&
		result.PriceTable.OK
	return result
}

// renderDoctorTable writes the human-readable diagnostic output from result to w.
func renderDoctorTable(result DoctorResult, w io.Writer) {
	fmt.Fprintln(w, "Environment Diagnostics")

	if result.Provider.Name == "" {
		fmt.Fprintln(w, "\nProvider:")
		doctorPrint(w, "Credentials", "Not checked (pass --provider)", "")
	} else {
		fmt.Fprintf(w, "\nProvider (%s):\n", result.Provider.Name)
		if result.Provider.Name == string(models.ProviderAWS) {
			if len(result.Provider.Profiles) == 0 {
				doctorPrint(w, "Profiles", "none found", "")
			} else {
				doctorPrint(w, "Profiles", fmt.Sprintf("%d found", len(result.Provider.Profiles)), strings.Join(result.Provider.Profiles, ", "))
			}
		}
		if !result.Provider.Credentials {
			doctorPrint(w, "Credentials", "FAIL", result.Provider.Error)
			doctorPrint(w, "Regions", "FAIL", "skipped")
		} else {
			doctorPrint(w, "Credentials", "OK", result.Provider.Identity)
			if result.Provider.RegionsOK {
				doctorPrint(w, "Regions", "OK", fmt.Sprintf("%d found", result.Provider.Regions))
			} else {
				doctorPrint(w, "Regions", "FAIL", result.Provider.Error)
			}
		}
	}

	fmt.Fprintln(w, "\nPolicy:")
	if !result.Policy.Present {
		doctorPrint(w, defaultPolicyFile+" present", "Not found (optional)", "")
	} else {
		doctorPrint(w, "Policy file", "YES", result.Policy.Path)
		if result.Policy.Valid {
			doctorPrint(w, "Policy valid", "OK", "")
		} else {
			for _, e := range result.Policy.Errors {
				doctorPrint(w, "Policy valid", "FAIL", e)
			}
		}
	}

	fmt.Fprintln(w, "\nPrice table:")
	if result.PriceTable.OK {
		doctorPrint(w, "Loaded", "OK", "version "+result.PriceTable.Version)
	} else {
		doctorPrint(w, "Loaded", "FAIL", result.PriceTable.Error)
	}
}

// doctorPrint writes a single diagnostic check line to w.
// When detail is non-empty it is appended in parentheses.
func doctorPrint(w io.Writer, label, status, detail string) {
	if detail != "" {
		fmt.Fprintf(w, "  %s: %s (%s)\n", label, status, detail)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", label, status)
	}
}
