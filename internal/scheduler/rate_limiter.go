// Package scheduler runs breadth-first crawls: retries, pacing and the main loop.
package scheduler

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pacer spaces out page loads within a run. Pause applies the politeness
// delay after a successful page; Throttle applies the optional global
// requests-per-second cap before every render attempt.
type Pacer struct {
	delay   time.Duration
	limiter *rate.Limiter
	sleep   SleepFunc
}

// NewPacer creates a pacer. rps <= 0 disables the global cap.
func NewPacer(delay time.Duration, rps float64, sleep SleepFunc) *Pacer {
	if sleep == nil {
		sleep = Sleep
	}
	p := &Pacer{delay: delay, sleep: sleep}
	if rps > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return p
}

// Delay returns the politeness delay.
func (p *Pacer) Delay() time.Duration {
	return p.delay
}

// Pause waits for the politeness delay.
func (p *Pacer) Pause(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, p.delay)
}

// Throttle waits for a token from the global rate limiter, if any.
func (p *Pacer) Throttle(ctx context.Context) error {
	if p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
