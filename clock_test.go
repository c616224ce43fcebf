package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fixedSource time.Time

func (s fixedSource) Now() time.Time { return time.Time(s) }

func TestRealClockSource(t *testing.T) {
	at := time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, at, RealClock{Source: fixedSource(at)}.Now())

	assert.WithinDuration(t, time.Now(), RealClock{}.Now(), time.Second)
}

func TestRealClockSleep(t *testing.T) {
	clock := RealClock{}

	start := time.Now()
	assert.NoError(t, clock.Sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	assert.NoError(t, clock.Sleep(context.Background(), 0))
	assert.NoError(t, clock.Sleep(context.Background(), -time.Second))
}

func TestRealClockSleepCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.ErrorIs(t, RealClock{}.Sleep(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.ErrorIs(t, RealClock{}.Sleep(ctx, 0), context.Canceled)
}

func TestSleepUntil(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))

	assert.NoError(t, sleepUntil(context.Background(), clock, clock.Now().Add(3*time.Second)))
	assert.Equal(t, []time.Duration{3 * time.Second}, clock.sleeps)
}
