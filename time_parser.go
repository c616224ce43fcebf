package main

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const birthdayLayout = "2006-01-02"

var ErrInvalidBirthday = errors.New("invalid birthday")

// ParseBirthday parses a calendar date into midnight UTC of that day.
// Supports the following formats:
//   - "2024-01-30"           (YYYY-MM-DD)
//   - "20240130"             (vCard basic form)
//   - "2024-01-30T00:00:00Z" (RFC3339, the date part is kept)
func ParseBirthday(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	if t, err := time.Parse(birthdayLayout, s); err == nil {
		return t, nil
	}

	if t, err := time.Parse("20060102", s); err == nil {
		return t, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}

	return time.Time{}, fmt.Errorf("%w %q: use format YYYY-MM-DD (e.g., 2024-01-30)", ErrInvalidBirthday, s)
}

// leapYear places yearless dates so that --02-29 survives parsing.
const leapYear = 2000

// ParseVCardBirthday parses a vCard BDAY value. Besides the forms
// ParseBirthday accepts it takes the yearless "--MMDD" and "--MM-DD";
// yearKnown reports which kind was seen.
func ParseVCardBirthday(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)

	if t, err := ParseBirthday(s); err == nil {
		return t, true, nil
	}

	for _, layout := range []string{"--01-02", "--0102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(leapYear, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), false, nil
		}
	}

	return time.Time{}, false, fmt.Errorf("%w %q: use YYYY-MM-DD or --MM-DD", ErrInvalidBirthday, s)
}

// NextOccurrence returns the first anniversary of birth on or after the
// calendar day of today, as midnight UTC. Feb 29 falls on Mar 1 in common
// years.
func NextOccurrence(today, birth time.Time) time.Time {
	year, month, day := today.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)

	candidate := time.Date(year, birth.Month(), birth.Day(), 0, 0, 0, 0, time.UTC)
	if candidate.Before(start) {
		candidate = time.Date(year+1, birth.Month(), birth.Day(), 0, 0, 0, 0, time.UTC)
	}
	return candidate
}
