package engine

import (
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

// Exit codes of the sweep CLI.
const (
	ExitOK         = 0
	ExitUnresolved = 1
	ExitAborted    = 2
)

// ExitCode maps a run outcome onto the CLI exit code:
//
//	2  the run did not start (runErr != nil), or it produced no findings
//	   because every listing call failed
//	1  a finding at or above threshold has no succeeded action
//	0  otherwise, including runs that recorded partial failures
func ExitCode(run *models.AuditRun, runErr error, threshold models.Severity) int {
	if runErr != nil || run == nil {
		return ExitAborted
	}
	if len(run.Findings) == 0 && allListingsFailed(run) {
		return ExitAborted
	}

	resolved := make(map[string]bool, len(run.ActionResults))
	for _, r := range run.ActionResults {
		if r.Succeeded {
			resolved[r.FindingID] = true
		}
	}
	for _, f := range run.Findings {
		if f.Severity.AtLeast(threshold) && !resolved[f.ID] {
			return ExitUnresolved
		}
	}
	return ExitOK
}

// allListingsFailed reports whether the run attempted listings and none
// succeeded.
func allListingsFailed(run *models.AuditRun) bool {
	if len(run.RegionsScanned) > 0 {
		return false
	}
	for _, e := range run.Errors {
		if e.Kind == models.ErrorKindPartialFailure || e.Kind == models.ErrorKindProvider {
			return true
		}
	}
	return false
}
