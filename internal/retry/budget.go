// Package retry waits for a late-bound dependency with a fixed retry budget.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrBudgetExhausted is returned when every retry was spent without success.
var ErrBudgetExhausted = errors.New("retry budget exhausted")

// Budget allows one initial attempt plus Retries more, Delay apart.
type Budget struct {
	Retries int
	Delay   time.Duration

	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do calls attempt until it reports true. It returns the number of retries
// consumed, ErrBudgetExhausted once none remain, or the context error.
func (b Budget) Do(ctx context.Context, attempt func() bool) (int, error) {
	sleep := b.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	remaining := b.Retries
	used := 0
	for {
		if attempt() {
			return used, nil
		}
		if remaining <= 0 {
			return used, ErrBudgetExhausted
		}
		remaining--
		used++
		if err := sleep(ctx, b.Delay); err != nil {
			return used, err
		}
	}
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
