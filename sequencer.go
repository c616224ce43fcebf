package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Step is one state of the per-recipient form sequence.
type Step int

const (
	StepCheckReady Step = iota
	StepFillFields
	StepOpenCalendar
	StepAwaitCalendarRender
	StepSelectDay
	StepAwaitPurchaseConfirm
	StepAdvance
)

var stepNames = [...]string{
	StepCheckReady:           "CheckReady",
	StepFillFields:           "FillFields",
	StepOpenCalendar:         "OpenCalendar",
	StepAwaitCalendarRender:  "AwaitCalendarRender",
	StepSelectDay:            "SelectDay",
	StepAwaitPurchaseConfirm: "AwaitPurchaseConfirm",
	StepAdvance:              "Advance",
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("Step(%d)", int(s))
	}
	return stepNames[s]
}

// SequenceResult tells the caller how far one pass got.
type SequenceResult int

const (
	SequenceNotReady SequenceResult = iota
	SequenceSubmitted
)

// FormSequencer fills the gift-card form for one recipient and adds it to
// the cart. Both waits are measured from the moment the calendar opened:
// the day is picked calendarRenderDelay after it, the confirming
// add-to-cart click lands addToCartDelay after it.
type FormSequencer struct {
	page      Page
	navigator *CalendarNavigator
	clock     Clock
	env       *time.Location
	timing    TimingConfig
	selectors SelectorConfig
	messages  MessageConfig
	dryRun    bool
	logger    *zap.Logger

	// OnStep, when set, observes every state entered.
	OnStep func(Step)
}

func NewFormSequencer(cfg *Config, page Page, clock Clock, env *time.Location, logger *zap.Logger) *FormSequencer {
	return &FormSequencer{
		page:      page,
		navigator: NewCalendarNavigator(page, clock, env, cfg.Selectors, logger),
		clock:     clock,
		env:       env,
		timing:    cfg.Timing,
		selectors: cfg.Selectors,
		messages:  cfg.Messages,
		dryRun:    cfg.DryRun,
		logger:    logger,
	}
}

// Process runs the sequence from CheckReady. A missing form yields
// SequenceNotReady with no field touched.
func (s *FormSequencer) Process(ctx context.Context, index int, rec RecipientRecord) (SequenceResult, error) {
	log := s.logger.With(zap.Int("recipient", index), zap.String("first_name", rec.FirstName()))
	var anchor time.Time

	step := StepCheckReady
	for {
		if s.OnStep != nil {
			s.OnStep(step)
		}
		log.Debug("Entering step", zap.Stringer("step", step))

		switch step {
		case StepCheckReady:
			ready, err := s.page.Exists(ctx, s.selectors.CustomAmount)
			if err != nil {
				return SequenceNotReady, fmt.Errorf("readiness check: %w", err)
			}
			if !ready {
				log.Info("Gift card form not present")
				return SequenceNotReady, nil
			}
			step = StepFillFields

		case StepFillFields:
			if err := s.fillFields(ctx, rec); err != nil {
				return SequenceNotReady, err
			}
			step = StepOpenCalendar

		case StepOpenCalendar:
			if _, err := s.navigator.Open(ctx, rec.Birthday()); err != nil {
				return SequenceNotReady, err
			}
			anchor = s.clock.Now()
			step = StepAwaitCalendarRender

		case StepAwaitCalendarRender:
			if err := sleepUntil(ctx, s.clock, anchor.Add(ms(s.timing.CalendarRenderDelay))); err != nil {
				return SequenceNotReady, err
			}
			step = StepSelectDay

		case StepSelectDay:
			key, err := TargetDayKey(rec.Birthday(), s.timing.ZoneOffsetHours, s.env)
			if err != nil {
				return SequenceNotReady, err
			}
			log.Debug("Day-selection key computed", zap.Int64("key", key))
			if err := s.navigator.SelectDay(ctx, rec.Birthday(), key); err != nil {
				return SequenceNotReady, err
			}
			if err := s.addToCart(ctx); err != nil {
				return SequenceNotReady, err
			}
			step = StepAwaitPurchaseConfirm

		case StepAwaitPurchaseConfirm:
			if err := sleepUntil(ctx, s.clock, anchor.Add(ms(s.timing.AddToCartDelay))); err != nil {
				return SequenceNotReady, err
			}
			// The first click is sometimes swallowed while the day selection settles.
			if err := s.addToCart(ctx); err != nil {
				return SequenceNotReady, err
			}
			step = StepAdvance

		case StepAdvance:
			log.Info("Recipient submitted", zap.String("email", rec.Email()), zap.String("birthday", rec.Birthday()))
			return SequenceSubmitted, nil
		}
	}
}

func (s *FormSequencer) fillFields(ctx context.Context, rec RecipientRecord) error {
	sel := s.selectors

	if err := s.page.SetValue(ctx, sel.CustomAmount, s.timing.CustomAmountValue); err != nil {
		return fmt.Errorf("failed to set custom amount: %w", err)
	}
	// The page keeps its preset amount unless the field sees a click, blur, focus.
	if err := s.page.DispatchEvents(ctx, sel.CustomAmount, "click", "blur", "focus"); err != nil {
		return fmt.Errorf("failed to focus custom amount: %w", err)
	}

	sender, message := s.Greeting(rec)
	fields := []struct{ id, value string }{
		{sel.Recipients, rec.Email()},
		{sel.SenderName, sender},
		{sel.Message, message},
	}
	for _, f := range fields {
		if err := s.page.SetValue(ctx, f.id, f.value); err != nil {
			return fmt.Errorf("failed to set %s: %w", f.id, err)
		}
	}
	return nil
}

// Greeting picks the sender name and message for rec.
func (s *FormSequencer) Greeting(rec RecipientRecord) (sender, message string) {
	m := s.messages
	if rec.Flag(m.FlagField, m.FlagValue) {
		return m.FlaggedSender, fmt.Sprintf(m.FlaggedTemplate, rec.FirstName())
	}
	return m.DefaultSender, fmt.Sprintf(m.DefaultTemplate, rec.FirstName())
}

func (s *FormSequencer) addToCart(ctx context.Context) error {
	if s.dryRun {
		s.logger.Info("Dry run, add to cart skipped")
		return nil
	}
	if err := s.page.Click(ctx, s.selectors.AddToCartButton); err != nil {
		return fmt.Errorf("failed to add to cart: %w", err)
	}
	return nil
}
