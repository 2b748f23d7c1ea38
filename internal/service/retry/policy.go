// Package retry runs an operation under a bounded attempt budget where each
// outcome is classified by the caller.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Verdict is what a classifier decided about one attempt.
type Verdict int

const (
	// Done ends the loop successfully.
	Done Verdict = iota
	// Retry consumes one attempt, then waits Delay.
	Retry
	// RetryFree waits Delay without consuming an attempt.
	RetryFree
)

func (v Verdict) String() string {
	switch v {
	case Done:
		return "done"
	case Retry:
		return "retry"
	case RetryFree:
		return "retry_free"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Decision is the classified outcome of one attempt.
type Decision struct {
	Verdict Verdict
	Delay   time.Duration
	Err     error
}

// Sleeper blocks for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// WallClock sleeps on real timers.
var WallClock Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
})

// ExhaustedError is returned once the attempt budget (or the free-retry cap)
// is used up. It unwraps to the last attempt's error.
type ExhaustedError struct {
	Attempts    int
	FreeRetries int
	Last        error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts (%d free retries): %v", e.Attempts, e.FreeRetries, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Policy bounds an operation. MaxFreeRetries caps RetryFree outcomes; zero
// means no cap, so only ctx can end a stream of free retries.
type Policy struct {
	MaxAttempts    int
	MaxFreeRetries int
	Sleeper        Sleeper
}

// Do calls op with the 1-based attempt number until op reports Done or the
// budget runs out. No delay is slept after the last consumed attempt.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) Decision) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleeper := p.Sleeper
	if sleeper == nil {
		sleeper = WallClock
	}

	var (
		attempt = 1
		free    int
		last    error
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		d := op(ctx, attempt)
		switch d.Verdict {
		case Done:
			return nil
		case RetryFree:
			last = d.Err
			free++
			if p.MaxFreeRetries > 0 && free > p.MaxFreeRetries {
				return &ExhaustedError{Attempts: attempt - 1, FreeRetries: free, Last: last}
			}
		default:
			last = d.Err
			if attempt >= maxAttempts {
				return &ExhaustedError{Attempts: attempt, FreeRetries: free, Last: last}
			}
			attempt++
		}

		if err := sleeper.Sleep(ctx, d.Delay); err != nil {
			return err
		}
	}
}
