package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Outcome is what one cycle (one page load) ended with.
type Outcome int

const (
	OutcomeSubmitted Outcome = iota
	OutcomeResumed
	OutcomeExhausted
	OutcomeNoRecipient
	// OutcomeFailed accompanies every non-nil error from Cycle.Run.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSubmitted:
		return "submitted"
	case OutcomeResumed:
		return "resumed"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeNoRecipient:
		return "no-recipient"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// ResumeController moves the batch on when the page has no form: back to
// the product page, one step forward in the counter, then a pause long
// enough for the navigation to settle.
type ResumeController struct {
	page       Page
	progress   *ProgressStore
	clock      Clock
	productURL string
	retryDelay int
	logger     *zap.Logger
}

func NewResumeController(cfg *Config, page Page, progress *ProgressStore, clock Clock, logger *zap.Logger) *ResumeController {
	return &ResumeController{
		page:       page,
		progress:   progress,
		clock:      clock,
		productURL: cfg.ProductURL,
		retryDelay: cfg.Timing.ResumeRetryDelay,
		logger:     logger,
	}
}

func (r *ResumeController) Resume(ctx context.Context) (int, error) {
	r.logger.Info("Returning to product page", zap.String("url", r.productURL))
	if err := r.page.Navigate(ctx, r.productURL); err != nil {
		return 0, fmt.Errorf("failed to navigate to product page: %w", err)
	}

	counter, err := r.progress.Increment(ctx)
	if err != nil {
		return 0, err
	}

	if err := r.clock.Sleep(ctx, ms(r.retryDelay)); err != nil {
		return counter, err
	}
	return counter, nil
}

// Cycle is the entry point run on every page load.
type Cycle struct {
	progress   *ProgressStore
	sequencer  *FormSequencer
	resume     *ResumeController
	recipients []RecipientRecord
	batchMax   int
	logger     *zap.Logger
}

func NewCycle(cfg *Config, recipients []RecipientRecord, progress *ProgressStore, sequencer *FormSequencer, resume *ResumeController, logger *zap.Logger) *Cycle {
	return &Cycle{
		progress:   progress,
		sequencer:  sequencer,
		resume:     resume,
		recipients: recipients,
		batchMax:   cfg.Timing.BatchMaxSize,
		logger:     logger,
	}
}

// Run processes at most one recipient. Once the counter reaches the batch
// maximum, or runs past the recipient list, it touches nothing.
func (c *Cycle) Run(ctx context.Context) (Outcome, error) {
	counter, err := c.progress.Counter(ctx)
	if err != nil {
		return OutcomeFailed, err
	}

	if counter >= c.batchMax {
		c.logger.Info("Batch complete", zap.Int("counter", counter), zap.Int("max", c.batchMax))
		return OutcomeExhausted, nil
	}
	if counter >= len(c.recipients) {
		c.logger.Info("No recipient left for counter", zap.Int("counter", counter), zap.Int("recipients", len(c.recipients)))
		return OutcomeNoRecipient, nil
	}

	result, err := c.sequencer.Process(ctx, counter, c.recipients[counter])
	if err != nil {
		return OutcomeFailed, fmt.Errorf("recipient %d: %w", counter, err)
	}
	if result == SequenceNotReady {
		if _, err := c.resume.Resume(ctx); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeResumed, nil
	}
	return OutcomeSubmitted, nil
}

// clockSyncer is the part of TimeSync the runner refreshes between cycles.
type clockSyncer interface {
	ShouldResync() bool
	Sync() error
	GetOffset() time.Duration
}

// Runner repeats cycles until the batch ends or a cycle fails.
type Runner struct {
	cycle    *Cycle
	resume   *ResumeController
	timeSync clockSyncer
	logger   *zap.Logger
}

func NewRunner(cycle *Cycle, resume *ResumeController, logger *zap.Logger) *Runner {
	return &Runner{cycle: cycle, resume: resume, logger: logger}
}

// WithTimeSync makes the runner refresh ts before a cycle once the last
// sync has gone stale. A failed refresh keeps the previous offset.
func (r *Runner) WithTimeSync(ts clockSyncer) *Runner {
	r.timeSync = ts
	return r
}

func (r *Runner) resync() {
	if r.timeSync == nil || !r.timeSync.ShouldResync() {
		return
	}
	if err := r.timeSync.Sync(); err != nil {
		r.logger.Warn("Clock resync failed, keeping previous offset", zap.Error(err))
		return
	}
	r.logger.Debug("Clock resynced", zap.Duration("offset", r.timeSync.GetOffset()))
}

// Run drives the batch. After a submission the purchase has left the form
// page, so the runner goes straight to the resume step the next page load
// would have taken.
func (r *Runner) Run(ctx context.Context) error {
	for n := 1; ; n++ {
		r.resync()
		outcome, err := r.cycle.Run(ctx)
		if err != nil {
			r.logger.Error("Cycle failed", zap.Int("cycle", n), zap.Error(err))
			return err
		}
		r.logger.Debug("Cycle finished", zap.Int("cycle", n), zap.Stringer("outcome", outcome))

		switch outcome {
		case OutcomeExhausted, OutcomeNoRecipient:
			return nil
		case OutcomeSubmitted:
			if _, err := r.resume.Resume(ctx); err != nil {
				return err
			}
		}
	}
}
