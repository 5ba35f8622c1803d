// Package retry provides the bounded-retry helper shared by the login and
// dispatch call sites. Backoff scheduling comes from cenkalti/backoff;
// whether an error is worth retrying comes from the apperr taxonomy.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mohsen-hany-dev/ivasms-otp/internal/apperr"
)

// DefaultAttempts is the attempt budget used by both retrying call sites.
const DefaultAttempts = 3

// AfterHinter is implemented by errors that carry a server-supplied
// retry-after hint (Telegram 429 responses).
type AfterHinter interface {
	RetryAfter() time.Duration
}

// Do runs fn up to maxAttempts times with exponential backoff starting at
// initial. It stops early when fn succeeds, when the error is classified as
// permanent, or when ctx is cancelled. A retry-after hint on the error
// stretches the next wait if it exceeds the scheduled backoff.
func Do(ctx context.Context, maxAttempts int, initial time.Duration, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.Reset()

	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !apperr.Retryable(err) || attempt >= maxAttempts {
			return err
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		var hinter AfterHinter
		if errors.As(err, &hinter) && hinter.RetryAfter() > wait {
			wait = hinter.RetryAfter()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
