package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// ErrDeadline is returned when the condition was not met before the deadline.
var ErrDeadline = errors.New("deadline exceeded")

// Condition reports whether polling can stop. A non-nil error aborts the poll.
type Condition func(ctx context.Context) (done bool, err error)

// Until evaluates cond immediately and then every interval until it returns
// true, returns an error, or the deadline elapses. The total wall-clock time
// is bounded by deadline plus one evaluation of cond.
func Until(ctx context.Context, interval, deadline time.Duration, cond Condition) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	if deadline <= 0 {
		return fmt.Errorf("%w after %s", ErrDeadline, deadline)
	}

	err := wait.PollUntilContextTimeout(ctx, interval, deadline, true, wait.ConditionWithContextFunc(cond))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if wait.Interrupted(err) {
		return fmt.Errorf("%w after %s", ErrDeadline, deadline)
	}
	return err
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
