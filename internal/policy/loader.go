package policy

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
)

// LoadPolicy reads and parses the policy file at path. Unknown keys are
// rejected so typos do not silently disable a setting.
func LoadPolicy(path string) (*PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &auditerr.ConfigError{Field: "policy", Err: err}
	}
	return ParsePolicy(data)
}

// ParsePolicy parses policy YAML.
func ParsePolicy(data []byte) (*PolicyConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg PolicyConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, &auditerr.ConfigError{Field: "policy", Err: fmt.Errorf("parse: %w", err)}
	}
	if cfg.Version != 1 {
		return nil, auditerr.NewConfigError("policy", "unsupported policy version %d", cfg.Version)
	}
	if cfg.Packs == nil {
		cfg.Packs = make(map[string]PackConfig)
	}
	if cfg.Rules == nil {
		cfg.Rules = make(map[string]RuleConfig)
	}
	return &cfg, nil
}
