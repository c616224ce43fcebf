package main

import (
	"context"
	"errors"
	"fmt"
)

// ErrElementNotFound is returned by Page methods when the lookup matched nothing.
var ErrElementNotFound = errors.New("element not found")

// Page is the slice of the storefront DOM the automation touches. Elements
// are found by id, or by class list plus index within the match set.
type Page interface {
	Exists(ctx context.Context, id string) (bool, error)
	SetValue(ctx context.Context, id, value string) error
	Click(ctx context.Context, id string) error
	// DispatchEvents fires bubbling synthetic events on the element, in order.
	DispatchEvents(ctx context.Context, id string, events ...string) error
	ClickClass(ctx context.Context, class string, index int) error
	// ClickClassChild clicks the first child of the first element carrying class.
	ClickClassChild(ctx context.Context, class string) error
	// Navigate loads url and returns once the new document has loaded.
	Navigate(ctx context.Context, url string) error
}

// CalendarKeyMismatchError means no day control carried the computed key,
// usually because the calendar opened on a different month or zone.
type CalendarKeyMismatchError struct {
	Key      int64
	Birthday string
}

func (e *CalendarKeyMismatchError) Error() string {
	return fmt.Sprintf("no calendar day control for key %d (birthday %s)", e.Key, e.Birthday)
}

func (e *CalendarKeyMismatchError) Unwrap() error {
	return ErrElementNotFound
}
