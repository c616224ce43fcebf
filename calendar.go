package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// MonthOffset counts "next month" clicks from today's month to target's.
// It never goes negative: a birthday in a month that has already passed
// this year lands on the current month instead of next year's.
func MonthOffset(today, target time.Time) int {
	diff := (target.Year()-today.Year())*12 + int(target.Month()) - int(today.Month())
	if diff < 0 {
		return 0
	}
	return diff
}

// TargetDayKey computes the epoch-millisecond key the storefront embeds in
// each calendar day control:
//
//	localMidnight(birthday) + zoneOffsetHours*3_600_000 + jsTimezoneOffset
//
// where localMidnight and jsTimezoneOffset are taken in env, and
// jsTimezoneOffset is minus env's UTC offset at that midnight. The host
// zone enters twice; keys only match when this arithmetic is exact.
func TargetDayKey(birthday string, zoneOffsetHours int, env *time.Location) (int64, error) {
	date, err := ParseBirthday(birthday)
	if err != nil {
		return 0, err
	}
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, env)
	_, utcOffset := midnight.Zone()

	zone := int64(zoneOffsetHours) * int64(time.Hour/time.Millisecond)
	local := -int64(utcOffset) * 1000
	return midnight.UnixMilli() + zone + local, nil
}

// CalendarNavigator opens the date picker, walks it forward to the
// birthday's month and clicks the day.
type CalendarNavigator struct {
	page      Page
	clock     Clock
	env       *time.Location
	selectors SelectorConfig
	logger    *zap.Logger
}

func NewCalendarNavigator(page Page, clock Clock, env *time.Location, selectors SelectorConfig, logger *zap.Logger) *CalendarNavigator {
	return &CalendarNavigator{
		page:      page,
		clock:     clock,
		env:       env,
		selectors: selectors,
		logger:    logger,
	}
}

// Open clicks the date input and advances the month view. The next-month
// clicks are issued back to back; the widget updates without a re-render.
func (n *CalendarNavigator) Open(ctx context.Context, birthday string) (int, error) {
	target, err := ParseBirthday(birthday)
	if err != nil {
		return 0, err
	}

	if err := n.page.Click(ctx, n.selectors.DateInput); err != nil {
		return 0, fmt.Errorf("failed to open calendar: %w", err)
	}

	offset := MonthOffset(n.clock.Now().In(n.env), target)
	for i := 0; i < offset; i++ {
		if err := n.page.ClickClass(ctx, n.selectors.NextMonthClass, n.selectors.NextMonthIndex); err != nil {
			return i, fmt.Errorf("failed to advance calendar month %d/%d: %w", i+1, offset, err)
		}
	}

	n.logger.Debug("Calendar opened", zap.String("birthday", birthday), zap.Int("month_offset", offset))
	return offset, nil
}

// SelectDay clicks the day control carrying key.
func (n *CalendarNavigator) SelectDay(ctx context.Context, birthday string, key int64) error {
	class := fmt.Sprintf(n.selectors.DayControlClass, key)
	err := n.page.ClickClassChild(ctx, class)
	if errors.Is(err, ErrElementNotFound) {
		return &CalendarKeyMismatchError{Key: key, Birthday: birthday}
	}
	if err != nil {
		return fmt.Errorf("failed to select calendar day: %w", err)
	}
	n.logger.Debug("Calendar day selected", zap.Int64("key", key))
	return nil
}
