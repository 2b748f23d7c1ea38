package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	slept []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return ctx.Err()
}

func script(decisions ...Decision) (func(context.Context, int) Decision, *[]int) {
	var seen []int
	i := 0
	return func(_ context.Context, attempt int) Decision {
		seen = append(seen, attempt)
		d := decisions[i]
		if i < len(decisions)-1 {
			i++
		}
		return d
	}, &seen
}

func TestDoSucceedsFirstTime(t *testing.T) {
	s := &recordingSleeper{}
	op, seen := script(Decision{Verdict: Done})

	err := Policy{MaxAttempts: 5, Sleeper: s}.Do(context.Background(), op)

	require.NoError(t, err)
	assert.Equal(t, []int{1}, *seen)
	assert.Empty(t, s.slept)
}

func TestDoFreeRetriesDoNotConsumeAttempts(t *testing.T) {
	s := &recordingSleeper{}
	limited := errors.New("note")
	op, seen := script(
		Decision{Verdict: RetryFree, Delay: 20 * time.Second, Err: limited},
		Decision{Verdict: RetryFree, Delay: 20 * time.Second, Err: limited},
		Decision{Verdict: Done},
	)

	err := Policy{MaxAttempts: 1, Sleeper: s}.Do(context.Background(), op)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1}, *seen)
	assert.Equal(t, []time.Duration{20 * time.Second, 20 * time.Second}, s.slept)
}

func TestDoExhaustsAttempts(t *testing.T) {
	s := &recordingSleeper{}
	transport := errors.New("connection refused")
	op, seen := script(Decision{Verdict: Retry, Delay: 5 * time.Second, Err: transport})

	err := Policy{MaxAttempts: 3, Sleeper: s}.Do(context.Background(), op)

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
	assert.ErrorIs(t, err, transport)
	assert.Equal(t, []int{1, 2, 3}, *seen)
	// no sleep after the final attempt
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, s.slept)
}

func TestDoCapsFreeRetries(t *testing.T) {
	s := &recordingSleeper{}
	limited := errors.New("note")
	op, _ := script(Decision{Verdict: RetryFree, Delay: time.Second, Err: limited})

	err := Policy{MaxAttempts: 5, MaxFreeRetries: 2, Sleeper: s}.Do(context.Background(), op)

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.FreeRetries)
	assert.Equal(t, 0, ex.Attempts)
	assert.Len(t, s.slept, 2)
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Policy{MaxAttempts: 5, Sleeper: &recordingSleeper{}}.Do(ctx, func(context.Context, int) Decision {
		calls++
		cancel()
		return Decision{Verdict: RetryFree}
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWallClockHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WallClock.Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
