package main

import (
	"context"
	"time"
)

// Clock abstracts "now" and timed waits so the form sequence can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock waits on real timers. A nil Source falls back to time.Now.
type RealClock struct {
	Source interface{ Now() time.Time }
}

func (c RealClock) Now() time.Time {
	if c.Source != nil {
		return c.Source.Now()
	}
	return time.Now()
}

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// sleepUntil waits until deadline on c, returning at once if it has passed.
func sleepUntil(ctx context.Context, c Clock, deadline time.Time) error {
	return c.Sleep(ctx, deadline.Sub(c.Now()))
}
