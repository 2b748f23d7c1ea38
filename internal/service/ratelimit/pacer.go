package ratelimit

import (
	"context"
	"sync"
	"time"

	"QuotePull/internal/service/retry"
)

// Pacer spaces out calls to a rate-limited provider. The first Wait returns
// immediately; every later Wait sleeps the full interval, whatever happened
// in between.
type Pacer struct {
	interval time.Duration
	sleeper  retry.Sleeper

	mu      sync.Mutex
	started bool
}

func NewPacer(interval time.Duration, sleeper retry.Sleeper) *Pacer {
	if sleeper == nil {
		sleeper = retry.WallClock
	}
	return &Pacer{interval: interval, sleeper: sleeper}
}

// Wait blocks until the next call may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	first := !p.started
	p.started = true
	p.mu.Unlock()

	if first || p.interval <= 0 {
		return ctx.Err()
	}
	return p.sleeper.Sleep(ctx, p.interval)
}

// Reset makes the next Wait return immediately again, as at the start of a
// fresh sequence of calls.
func (p *Pacer) Reset() {
	p.mu.Lock()
	p.started = false
	p.mu.Unlock()
}

// Interval reports the configured pacing delay.
func (p *Pacer) Interval() time.Duration { return p.interval }
