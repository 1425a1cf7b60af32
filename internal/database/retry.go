package database

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// newBackOff is swapped in tests to avoid real sleeps.
var newBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	return b
}

// ConnectWithRetry calls connect until it succeeds, ctx is done, or
// maxRetries retries have failed. Each failed attempt is logged.
func ConnectWithRetry[T any](ctx context.Context, log *zap.Logger, target string, maxRetries uint64, connect func(context.Context) (T, error)) (T, error) {
	var attempt int
	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), maxRetries), ctx)

	return backoff.RetryNotifyWithData[T](func() (T, error) {
		attempt++
		return connect(ctx)
	}, policy, func(err error, next time.Duration) {
		log.Warn("store connection failed, retrying",
			zap.String("target", target),
			zap.Int("attempt", attempt),
			zap.Duration("next", next),
			zap.Error(err),
		)
	})
}
