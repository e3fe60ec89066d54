package sources

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
)

// RetryConfig bounds the exponential backoff applied to transient failures.
type RetryConfig struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig suits periodic polling: a few quick retries, then give
// up until the next cycle.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxTries:        3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// fetchWithRetry runs op under the retry policy. Only transient errors are
// retried; auth and rate-limit errors abort immediately so the poller can
// react to them.
func fetchWithRetry[T any](ctx context.Context, rc RetryConfig, log *logrus.Logger, op func() (T, error)) (T, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = rc.InitialInterval
	expo.MaxInterval = rc.MaxInterval

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err == nil {
			return v, nil
		}
		var transient *TransientError
		if !errors.As(err, &transient) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(rc.MaxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.WithError(err).WithField("wait", wait.String()).Warn("Transient fetch error, retrying")
		}),
	)
}
