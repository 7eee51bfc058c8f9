// Package retry provides a bounded polling helper for waiting on data that
// arrives asynchronously.
package retry

import (
	"context"
	"time"
)

// Policy bounds a poll loop.
type Policy struct {
	// MaxAttempts is the number of times the condition is checked. Values below 1 mean 1.
	MaxAttempts int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
	// Deadline, when non-zero, is a hard ceiling on the whole loop.
	Deadline time.Time
}

// Result reports how a poll loop ended.
type Result struct {
	Attempts int
	// Complete is true when the condition reported done. False means the
	// caller should proceed with whatever partial data it has.
	Complete bool
	// Err is set when the loop was cut short by the context or deadline.
	Err error
}

// Poll calls check until it reports done, the attempts are used up, or ctx
// (or the policy deadline) expires. It never sleeps after the last attempt.
// An error returned by check stops the loop and is passed through in Result.Err.
func Poll(ctx context.Context, policy Policy, check func(ctx context.Context, attempt int) (bool, error)) Result {
	if !policy.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, policy.Deadline)
		defer cancel()
	}
	attempts := max(policy.MaxAttempts, 1)

	var res Result
	for attempt := range attempts {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		res.Attempts = attempt + 1
		done, err := check(ctx, attempt)
		if err != nil {
			res.Err = err
			return res
		}
		if done {
			res.Complete = true
			return res
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(policy.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			res.Err = ctx.Err()
			return res
		case <-timer.C:
		}
	}
	return res
}
