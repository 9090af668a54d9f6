// Package poll provides a bounded blocking poller: a condition is evaluated
// at a fixed interval until it holds or a deadline elapses.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the condition did not hold before the
// configured timeout. It is distinct from condition evaluation errors, which
// propagate as-is.
var ErrTimeout = errors.New("poll: timed out")

// Options controls poll timing and progress reporting.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration

	// OnWait, when set, is called before each sleep with the elapsed time so
	// far. It lets callers surface liveness without changing poll timing.
	OnWait func(elapsed time.Duration)
}

// Until evaluates cond immediately and then once per interval until it
// returns true, it returns an error, the timeout elapses, or ctx is
// cancelled. The caller blocks for the duration.
func Until(ctx context.Context, cond func(context.Context) (bool, error), opts Options) error {
	start := time.Now()
	deadline := time.After(opts.Timeout)

	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		if opts.OnWait != nil {
			opts.OnWait(time.Since(start))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return ErrTimeout
		case <-time.After(opts.Interval):
		}
	}
}
