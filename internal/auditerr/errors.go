// Package auditerr defines the error taxonomy of an audit run.
//
// ConfigError is fatal and aborts a run before any provider call. Every other
// kind is captured into the run as a models.RunError and the run continues.
package auditerr

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

// Reason classifies a ProviderError.
type Reason string

const (
	ReasonAuth      Reason = "auth"
	ReasonNetwork   Reason = "network"
	ReasonRateLimit Reason = "rate-limit"
	ReasonTimeout   Reason = "timeout"
	ReasonNotFound  Reason = "not-found"
	ReasonUnknown   Reason = "unknown"
)

// Transient reports whether a listing call failing for this reason may be
// retried.
func (r Reason) Transient() bool {
	switch r {
	case ReasonRateLimit, ReasonTimeout, ReasonNetwork:
		return true
	}
	return false
}

// ConfigError reports bad or missing configuration.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError builds a ConfigError for field with a formatted message.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// ProviderError wraps a failed remote call.
type ProviderError struct {
	Provider   models.Provider
	Op         string
	Region     string
	Kind       models.Kind
	ResourceID string
	Reason     Reason
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Provider, e.Op)
	if e.Region != "" {
		msg += " " + e.Region
	}
	if e.ResourceID != "" {
		msg += " " + e.ResourceID
	}
	return fmt.Sprintf("%s (%s): %v", msg, e.Reason, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PolicyError reports a rule that failed on malformed resource attributes.
type PolicyError struct {
	RuleID     string
	ResourceID string
	Err        error
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("rule %s on %s: %v", e.RuleID, e.ResourceID, e.Err)
}

func (e *PolicyError) Unwrap() error { return e.Err }

// PrecheckFailed reports that the reversible artifact for a destructive
// action could not be created, so the action was not attempted.
type PrecheckFailed struct {
	ResourceID string
	Action     models.Action
	Err        error
}

func (e *PrecheckFailed) Error() string {
	return fmt.Sprintf("precheck for %s on %s failed: %v", e.Action, e.ResourceID, e.Err)
}

func (e *PrecheckFailed) Unwrap() error { return e.Err }

// PartialFailure reports a (kind, region) pair that could not be listed.
type PartialFailure struct {
	Kind   models.Kind
	Region string
	Err    error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("listing %s in %s failed: %v", e.Kind, e.Region, e.Err)
}

func (e *PartialFailure) Unwrap() error { return e.Err }

// ReasonOf returns the provider reason carried by err, falling back to
// classifying well-known standard library errors.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return Classify(err)
}

// Classify maps provider-neutral errors onto a Reason. Provider adapters
// call it after their own SDK-specific checks found nothing.
func Classify(err error) Reason {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonUnknown
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonNetwork
	}
	return ReasonUnknown
}

// IsNotFound reports whether err is a ProviderError for a missing resource.
func IsNotFound(err error) bool {
	return ReasonOf(err) == ReasonNotFound
}

// IsTransient reports whether err may be retried by a listing call.
func IsTransient(err error) bool {
	return ReasonOf(err).Transient()
}

// ToRunError converts err into its serialisable form. The outermost taxonomy
// type decides the kind; provider details are copied when present.
func ToRunError(err error) models.RunError {
	re := models.RunError{Kind: models.ErrorKindProvider, Message: err.Error()}

	var existing *models.RunError
	if errors.As(err, &existing) {
		return *existing
	}

	var (
		cfgErr *ConfigError
		polErr *PolicyError
		preErr *PrecheckFailed
		parErr *PartialFailure
		prvErr *ProviderError
	)
	switch {
	case errors.As(err, &cfgErr):
		re.Kind = models.ErrorKindConfig
	case errors.As(err, &parErr):
		re.Kind = models.ErrorKindPartialFailure
		re.Region = parErr.Region
		re.ResourceKind = parErr.Kind
	case errors.As(err, &preErr):
		re.Kind = models.ErrorKindPrecheckFailed
		re.ResourceID = preErr.ResourceID
	case errors.As(err, &polErr):
		re.Kind = models.ErrorKindPolicy
		re.RuleID = polErr.RuleID
		re.ResourceID = polErr.ResourceID
	}

	if errors.As(err, &prvErr) {
		re.Reason = string(prvErr.Reason)
		re.Provider = prvErr.Provider
		if re.Region == "" {
			re.Region = prvErr.Region
		}
		if re.ResourceKind == "" {
			re.ResourceKind = prvErr.Kind
		}
		if re.ResourceID == "" {
			re.ResourceID = prvErr.ResourceID
		}
	} else if re.Kind == models.ErrorKindProvider || re.Kind == models.ErrorKindPartialFailure {
		re.Reason = string(Classify(err))
	}
	return re
}
