package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
)

var fast = Policy{Attempts: 3, Initial: time.Millisecond, Factor: 2, Cap: 5 * time.Millisecond}

func providerErr(reason auditerr.Reason) error {
	return &auditerr.ProviderError{Provider: "aws", Op: "DescribeVolumes", Reason: reason, Err: errors.New("boom")}
}

func TestDo_SucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, func(context.Context) error {
		calls++
		if calls == 1 {
			return providerErr(auditerr.ReasonRateLimit)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_StopsAtAttemptCap(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, func(context.Context) error {
		calls++
		return providerErr(auditerr.ReasonTimeout)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, auditerr.ReasonTimeout, auditerr.ReasonOf(err))
}

func TestDo_DoesNotRetryPermanentErrors(t *testing.T) {
	for _, reason := range []auditerr.Reason{auditerr.ReasonAuth, auditerr.ReasonNotFound, auditerr.ReasonUnknown} {
		calls := 0
		err := Do(context.Background(), fast, func(context.Context) error {
			calls++
			return providerErr(reason)
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls, "reason %s", reason)
		assert.Equal(t, reason, auditerr.ReasonOf(err))
	}
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, fast, func(context.Context) error {
		calls++
		return nil
	})
	assert.Error(t, err)
	assert.Equal(t, 0, calls)
}
