package probe

import (
	"context"
	"time"
)

// RetryChecker re-runs Inner until it passes or Attempts are used up,
// waiting Backoff between tries.
type RetryChecker struct {
	Inner    Checker
	Attempts int
	Backoff  time.Duration
}

func (r *RetryChecker) Check(ctx context.Context, target string) CheckResult {
	attempts := max(r.Attempts, 1)
	var last CheckResult
	for i := 1; i <= attempts; i++ {
		last = r.Inner.Check(ctx, target)
		if last.Success || i == attempts {
			break
		}
		timer := time.NewTimer(r.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			last.Message += " (retry cancelled)"
			return last
		case <-timer.C:
		}
	}
	if !last.Success && attempts > 1 {
		last.Message += " (after retries)"
	}
	return last
}
