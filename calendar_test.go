package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthOffset(t *testing.T) {
	tests := []struct {
		name   string
		today  time.Time
		target time.Time
		want   int
	}{
		{"Same month", date(2024, 1, 1), date(2024, 1, 30), 0},
		{"Same month earlier day", date(2024, 1, 30), date(2024, 1, 2), 0},
		{"Next month", date(2024, 1, 31), date(2024, 2, 1), 1},
		{"Later this year", date(2024, 3, 15), date(2024, 11, 2), 8},
		{"Across year end", date(2024, 11, 20), date(2025, 2, 3), 3},
		{"Two years out", date(2024, 1, 1), date(2026, 1, 1), 24},
		// Known limitation: a month that already passed is clamped to the
		// current month instead of rolling to next year.
		{"Past month clamps to zero", date(2024, 6, 1), date(2024, 2, 14), 0},
		{"Past year clamps to zero", date(2024, 6, 1), date(1990, 8, 14), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MonthOffset(tt.today, tt.target))
		})
	}
}

func TestTargetDayKeyFormula(t *testing.T) {
	const hour = int64(3_600_000)
	day := date(2024, 1, 30).UnixMilli()

	tests := []struct {
		name string
		env  *time.Location
		zone int
		want int64
	}{
		// midnight = day; host offset 0
		{"UTC host, GMT+8 zone", time.UTC, 8, day + 8*hour},
		// midnight = day-8h; getTimezoneOffset = -480min
		{"GMT+8 host, GMT+8 zone", time.FixedZone("CST", 8*3600), 8, day - 8*hour},
		// midnight = day+5h; getTimezoneOffset = +300min
		{"GMT-5 host, GMT+8 zone", time.FixedZone("EST", -5*3600), 8, day + 18*hour},
		{"UTC host, negative zone", time.UTC, -3, day - 3*hour},
		{"Half hour host", time.FixedZone("IST", 5*3600+1800), 0, day - 11*hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := TargetDayKey("2024-01-30", tt.zone, tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestTargetDayKeyUsesOffsetInEffectAtMidnight(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	const hour = int64(3_600_000)

	winter, err := TargetDayKey("2024-01-30", 8, ny)
	require.NoError(t, err)
	assert.Equal(t, date(2024, 1, 30).UnixMilli()+(5+5+8)*hour, winter)

	summer, err := TargetDayKey("2024-07-04", 8, ny)
	require.NoError(t, err)
	assert.Equal(t, date(2024, 7, 4).UnixMilli()+(4+4+8)*hour, summer)
}

func TestTargetDayKeyIsDeterministic(t *testing.T) {
	env := time.FixedZone("X", -7*3600)
	first, err := TargetDayKey("2024-12-25", 8, env)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := TargetDayKey("2024-12-25", 8, env)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestTargetDayKeyInvalidBirthday(t *testing.T) {
	_, err := TargetDayKey("30/01/2024", 8, time.UTC)
	assert.ErrorIs(t, err, ErrInvalidBirthday)
}

func TestCalendarNavigatorOpenClicksNextMonth(t *testing.T) {
	tests := []struct {
		name       string
		today      time.Time
		birthday   string
		wantClicks int
	}{
		{"Same month", date(2024, 1, 1), "2024-01-30", 0},
		{"Three months ahead", date(2024, 1, 1), "2024-04-02", 3},
		{"Elapsed month", date(2024, 5, 1), "2024-01-30", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock(tt.today)
			page := newFakePage(clock).withGiftForm()
			sel := DefaultConfig().Selectors
			nav := NewCalendarNavigator(page, clock, time.UTC, sel, zap.NewNop())

			offset, err := nav.Open(context.Background(), tt.birthday)
			require.NoError(t, err)
			assert.Equal(t, tt.wantClicks, offset)
			assert.Equal(t, 1, page.count("click", sel.DateInput))
			assert.Equal(t, tt.wantClicks, page.count("clickClass", sel.NextMonthClass))
			assert.Empty(t, clock.sleeps, "month clicks must not wait")
		})
	}
}

func TestCalendarNavigatorOpenMissingNextControl(t *testing.T) {
	clock := newFakeClock(date(2024, 1, 1))
	page := newFakePage(clock).withGiftForm()
	sel := DefaultConfig().Selectors
	page.classes[sel.NextMonthClass] = 1 // index 1 is required

	nav := NewCalendarNavigator(page, clock, time.UTC, sel, zap.NewNop())
	_, err := nav.Open(context.Background(), "2024-03-01")
	assert.ErrorIs(t, err, ErrElementNotFound)
}

func TestCalendarNavigatorSelectDay(t *testing.T) {
	sel := DefaultConfig().Selectors
	clock := newFakeClock(date(2024, 1, 1))

	t.Run("Matching control", func(t *testing.T) {
		page := newFakePage(clock).withGiftForm(1706630400000)
		nav := NewCalendarNavigator(page, clock, time.UTC, sel, zap.NewNop())

		require.NoError(t, nav.SelectDay(context.Background(), "2024-01-30", 1706630400000))
		assert.Equal(t, 1, page.count("clickChild", fmt.Sprintf(sel.DayControlClass, int64(1706630400000))))
	})

	t.Run("No matching control", func(t *testing.T) {
		page := newFakePage(clock).withGiftForm(1)
		nav := NewCalendarNavigator(page, clock, time.UTC, sel, zap.NewNop())

		err := nav.SelectDay(context.Background(), "2024-01-30", 42)
		var mismatch *CalendarKeyMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, int64(42), mismatch.Key)
		assert.Equal(t, "2024-01-30", mismatch.Birthday)
		assert.ErrorIs(t, err, ErrElementNotFound)
	})
}
