package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout indicates an operation exceeded its deadline.
var ErrTimeout = errors.New("resilience: operation timed out")

// DefaultTimeout applies when a caller passes a non-positive timeout.
const DefaultTimeout = 30 * time.Second

// ExecuteWithTimeout runs op under a deadline derived from ctx. The
// deadline is mapped to ErrTimeout so callers can distinguish it from
// caller-initiated cancellation, which is returned as ctx.Err().
func ExecuteWithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := op(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == context.DeadlineExceeded {
		return ErrTimeout
	}
	return err
}
