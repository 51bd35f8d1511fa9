// Package retry re-runs read-only provider calls that failed transiently.
// Mutations must never go through it: a retried delete can act twice.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
)

// Policy is an exponential backoff schedule with an attempt cap.
type Policy struct {
	Attempts int
	Initial  time.Duration
	Factor   float64
	Jitter   float64
	Cap      time.Duration
}

// DefaultPolicy is used for listing calls.
var DefaultPolicy = Policy{
	Attempts: 4,
	Initial:  500 * time.Millisecond,
	Factor:   2,
	Jitter:   0.1,
	Cap:      10 * time.Second,
}

// Do calls fn until it succeeds, fails with a non-transient error, the
// attempt cap is reached or ctx is done. It returns fn's last error, or the
// context error when ctx ended before fn ever failed.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := zerolog.Ctx(ctx)

	var (
		attempt int
		lastErr error
	)
	backoff := wait.Backoff{
		Duration: p.Initial,
		Factor:   p.Factor,
		Jitter:   p.Jitter,
		Cap:      p.Cap,
		// One spare step so the cap below, not the backoff, ends the loop.
		Steps: p.Attempts + 1,
	}
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		attempt++
		lastErr = fn(ctx)
		switch {
		case lastErr == nil:
			return true, nil
		case !auditerr.IsTransient(lastErr), attempt >= p.Attempts:
			return false, lastErr
		}
		logger.Debug().Err(lastErr).Int("attempt", attempt).Msg("transient error; retrying")
		return false, nil
	})
	if err == nil {
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return err
}
