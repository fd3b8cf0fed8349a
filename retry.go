package nostrcrdt

import (
	"context"
	"time"
)

// RetryPolicy runs an action up to Attempts times with a fixed Delay
// between attempts. The budget is bounded: once spent, the last error
// is returned and nothing is re-queued. Sleep is injectable so tests
// run without wall-clock waits; nil means a real timer.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	Sleep    func(ctx context.Context, d time.Duration) error
}

// DefaultRetry matches the peers' reference behavior.
var DefaultRetry = RetryPolicy{Attempts: 3, Delay: time.Second}

func (p RetryPolicy) Do(ctx context.Context, action func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	var last error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.Delay); err != nil {
				return err
			}
		}
		if last = action(); last == nil {
			return nil
		}
	}
	return last
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
