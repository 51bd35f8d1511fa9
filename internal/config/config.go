// Package config resolves the run configuration from flags, SWEEP_*
// environment variables and an optional config file, in that order of
// precedence. The result is a plain value: the engine receives a copy and
// nothing in the process mutates it afterwards.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

// EnvPrefix is prepended to every environment variable, e.g.
// SWEEP_CONCURRENCY_LISTING.
const EnvPrefix = "SWEEP"

// Output formats understood by the reporter.
const (
	OutputTable   = "table"
	OutputJSON    = "json"
	OutputSummary = "summary"
)

// Config is the validated configuration of one audit run.
type Config struct {
	Provider    models.Provider
	Regions     []string
	Kinds       []models.Kind
	Mode        models.Mode
	MinSeverity models.Severity
	Output      string

	// ActionKinds limits remediation to findings on these kinds. Empty means
	// every kind.
	ActionKinds []models.Kind

	ConcurrencyListing int
	ConcurrencyAction  int

	PriceTableVersion string
	PriceTablePath    string
	PolicyPath        string
	HistoryPath       string
	LogLevel          string

	Profile      string
	Project      string
	Subscription string
	KubeContext  string
	Kubeconfig   string
	FixturePath  string
}

// raw mirrors the viper keys before validation.
type raw struct {
	Provider           string   `mapstructure:"provider"`
	Regions            []string `mapstructure:"regions"`
	Kinds              []string `mapstructure:"kinds"`
	Mode               string   `mapstructure:"mode"`
	MinSeverity        string   `mapstructure:"min_severity"`
	Output             string   `mapstructure:"output"`
	ActionKinds        []string `mapstructure:"action_kinds"`
	ConcurrencyListing int      `mapstructure:"concurrency_listing"`
	ConcurrencyAction  int      `mapstructure:"concurrency_action"`
	PriceTableVersion  string   `mapstructure:"cost_price_table_version"`
	PriceTable         string   `mapstructure:"price_table"`
	Policy             string   `mapstructure:"policy"`
	History            string   `mapstructure:"history"`
	LogLevel           string   `mapstructure:"log_level"`
	Profile            string   `mapstructure:"profile"`
	Project            string   `mapstructure:"project"`
	Subscription       string   `mapstructure:"subscription"`
	KubeContext        string   `mapstructure:"kube_context"`
	Kubeconfig         string   `mapstructure:"kubeconfig"`
	Fixture            string   `mapstructure:"fixture"`
}

// defaults lists every key viper should know about. Keys absent here would
// not pick up environment overrides on Unmarshal.
var defaults = map[string]any{
	"provider":                 "",
	"regions":                  []string{},
	"kinds":                    []string{},
	"mode":                     string(models.ModeReportOnly),
	"min_severity":             string(models.SeverityLow),
	"output":                   OutputTable,
	"action_kinds":             []string{},
	"concurrency_listing":      8,
	"concurrency_action":       2,
	"cost_price_table_version": "",
	"price_table":              "",
	"policy":                   "",
	"history":                  "",
	"log_level":                "info",
	"profile":                  "",
	"project":                  "",
	"subscription":             "",
	"kube_context":             "",
	"kubeconfig":               "",
	"fixture":                  "",
}

// New returns a viper instance with defaults and SWEEP_ environment lookup.
func New() *viper.Viper {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds every flag in fs whose underscored name is a config key,
// so --concurrency-listing feeds concurrency_listing.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		switch key {
		case "region":
			key = "regions"
		case "kind":
			key = "kinds"
		case "action_kind":
			key = "action_kinds"
		case "price_table_version":
			key = "cost_price_table_version"
		}
		if _, known := defaults[key]; !known || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

// Load reads the optional config file, then unmarshals and validates.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, &auditerr.ConfigError{Field: "config", Err: fmt.Errorf("read %s: %w", configFile, err)}
		}
	}
	var r raw
	if err := v.Unmarshal(&r); err != nil {
		return Config{}, &auditerr.ConfigError{Err: fmt.Errorf("parse configuration: %w", err)}
	}
	return r.validate()
}

func (r raw) validate() (Config, error) {
	var cfg Config
	var err error

	if strings.TrimSpace(r.Provider) == "" {
		return Config{}, auditerr.NewConfigError("provider", "required; valid values: aws, gcp, azure, kubernetes, fixture")
	}
	if cfg.Provider, err = models.ParseProvider(r.Provider); err != nil {
		return Config{}, &auditerr.ConfigError{Field: "provider", Err: err}
	}
	if cfg.Mode, err = models.ParseMode(r.Mode); err != nil {
		return Config{}, &auditerr.ConfigError{Field: "mode", Err: err}
	}
	if cfg.MinSeverity, err = models.ParseSeverity(r.MinSeverity); err != nil {
		return Config{}, &auditerr.ConfigError{Field: "min_severity", Err: err}
	}
	switch out := strings.ToLower(strings.TrimSpace(r.Output)); out {
	case OutputTable, OutputJSON, OutputSummary:
		cfg.Output = out
	default:
		return Config{}, auditerr.NewConfigError("output", "invalid format %q; valid values: table, json, summary", r.Output)
	}
	if cfg.Regions, err = cleanList(r.Regions); err != nil {
		return Config{}, &auditerr.ConfigError{Field: "regions", Err: err}
	}
	if cfg.Kinds, err = parseKinds(r.Kinds); err != nil {
		return Config{}, &auditerr.ConfigError{Field: "kinds", Err: err}
	}
	if cfg.ActionKinds, err = parseKinds(r.ActionKinds); err != nil {
		return Config{}, &auditerr.ConfigError{Field: "action_kinds", Err: err}
	}
	if r.ConcurrencyListing < 1 {
		return Config{}, auditerr.NewConfigError("concurrency_listing", "must be at least 1, got %d", r.ConcurrencyListing)
	}
	if r.ConcurrencyAction < 1 {
		return Config{}, auditerr.NewConfigError("concurrency_action", "must be at least 1, got %d", r.ConcurrencyAction)
	}
	if cfg.Provider == models.ProviderFixture && r.Fixture == "" {
		return Config{}, auditerr.NewConfigError("fixture", "required when provider is fixture")
	}

	cfg.ConcurrencyListing = r.ConcurrencyListing
	cfg.ConcurrencyAction = r.ConcurrencyAction
	cfg.PriceTableVersion = r.PriceTableVersion
	cfg.PriceTablePath = r.PriceTable
	cfg.PolicyPath = r.Policy
	cfg.HistoryPath = r.History
	cfg.LogLevel = r.LogLevel
	cfg.Profile = r.Profile
	cfg.Project = r.Project
	cfg.Subscription = r.Subscription
	cfg.KubeContext = r.KubeContext
	cfg.Kubeconfig = r.Kubeconfig
	cfg.FixturePath = r.Fixture
	return cfg, nil
}

// cleanList trims entries, drops empties and duplicates, and splits any
// comma-joined entries left over from environment variables.
func cleanList(in []string) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if strings.ContainsAny(part, " \t") {
				return nil, fmt.Errorf("invalid entry %q", part)
			}
			if _, dup := seen[part]; dup {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out, nil
}

func parseKinds(in []string) ([]models.Kind, error) {
	names, err := cleanList(in)
	if err != nil {
		return nil, err
	}
	var out []models.Kind
	for _, n := range names {
		k, err := models.ParseKind(n)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// Validate re-checks a Config built without Load, as tests and library
// callers do.
func (c Config) Validate() error {
	r := raw{
		Provider:           string(c.Provider),
		Regions:            c.Regions,
		Mode:               string(c.Mode),
		MinSeverity:        string(c.MinSeverity),
		Output:             c.Output,
		ConcurrencyListing: c.ConcurrencyListing,
		ConcurrencyAction:  c.ConcurrencyAction,
		Fixture:            c.FixturePath,
	}
	for _, k := range c.Kinds {
		r.Kinds = append(r.Kinds, string(k))
	}
	for _, k := range c.ActionKinds {
		r.ActionKinds = append(r.ActionKinds, string(k))
	}
	_, err := r.validate()
	return err
}

// WithDefaults fills unset fields of c with the documented defaults.
func (c Config) WithDefaults() Config {
	if c.Mode == "" {
		c.Mode = models.ModeReportOnly
	}
	if c.MinSeverity == "" {
		c.MinSeverity = models.SeverityLow
	}
	if c.Output == "" {
		c.Output = OutputTable
	}
	if c.ConcurrencyListing == 0 {
		c.ConcurrencyListing = 8
	}
	if c.ConcurrencyAction == 0 {
		c.ConcurrencyAction = 2
	}
	return c
}
