package common

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

var notFoundCodes = map[string]struct{}{
	"NoSuchEntity":                         {},
	"DBInstanceNotFound":                   {},
	"DBInstanceNotFoundFault":              {},
	"LoadBalancerNotFound":                 {},
	"LoadBalancerNotFoundException":        {},
	"NoSuchBucket":                         {},
	"NoSuchPublicAccessBlockConfiguration": {},
	"InvalidPermission.NotFound":           {},
}

var rateLimitCodes = map[string]struct{}{
	"Throttling":                             {},
	"ThrottlingException":                    {},
	"ThrottledException":                     {},
	"RequestLimitExceeded":                   {},
	"TooManyRequestsException":               {},
	"SlowDown":                               {},
	"RequestThrottled":                       {},
	"ProvisionedThroughputExceededException": {},
}

var authCodes = map[string]struct{}{
	"AuthFailure":                 {},
	"UnauthorizedOperation":       {},
	"AccessDenied":                {},
	"AccessDeniedException":       {},
	"ExpiredToken":                {},
	"ExpiredTokenException":       {},
	"InvalidClientTokenId":        {},
	"UnrecognizedClientException": {},
	"SignatureDoesNotMatch":       {},
}

var timeoutCodes = map[string]struct{}{
	"RequestTimeout":          {},
	"RequestTimeoutException": {},
}

// ClassifyError maps an AWS SDK error onto an auditerr.Reason using the
// smithy API error code.
func ClassifyError(err error) auditerr.Reason {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		code := ae.ErrorCode()
		if _, ok := notFoundCodes[code]; ok || strings.HasSuffix(code, ".NotFound") {
			return auditerr.ReasonNotFound
		}
		if _, ok := rateLimitCodes[code]; ok {
			return auditerr.ReasonRateLimit
		}
		if _, ok := authCodes[code]; ok {
			return auditerr.ReasonAuth
		}
		if _, ok := timeoutCodes[code]; ok {
			return auditerr.ReasonTimeout
		}
	}
	return auditerr.Classify(err)
}

// WrapError wraps err into an auditerr.ProviderError for op. It returns nil
// for a nil err.
func WrapError(err error, op, region string, kind models.Kind, resourceID string) error {
	if err == nil {
		return nil
	}
	return &auditerr.ProviderError{
		Provider:   models.ProviderAWS,
		Op:         op,
		Region:     region,
		Kind:       kind,
		ResourceID: resourceID,
		Reason:     ClassifyError(err),
		Err:        err,
	}
}
