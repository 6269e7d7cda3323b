package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"thorn/internal/delivery"
	"thorn/internal/logging"
	"thorn/internal/metrics"
)

// EngineOptions tunes the scheduler engine. Zero values fall back to
// defaults; Now and NewID exist for tests.
type EngineOptions struct {
	Logger              *slog.Logger
	Metrics             metrics.Sink
	PollInterval        time.Duration
	DispatchTimeout     time.Duration
	MaxDispatchAttempts int

	Now   func() time.Time
	NewID func() string
}

// Engine evaluates pending entries against the clock and dispatches the ones
// that come due. One engine owns one store; ticks never overlap.
type Engine struct {
	store  *Store
	sender delivery.Sender
	logger *slog.Logger
	sink   metrics.Sink

	pollInterval    time.Duration
	dispatchTimeout time.Duration
	maxAttempts     int

	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewEngine builds a scheduler engine over a store and a delivery sender.
func NewEngine(store *Store, sender delivery.Sender, opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	sink := opts.Metrics
	if sink == nil {
		sink = metrics.Noop{}
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	dispatchTimeout := opts.DispatchTimeout
	if dispatchTimeout <= 0 {
		dispatchTimeout = 30 * time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Engine{
		store:           store,
		sender:          sender,
		logger:          logging.NewComponentLogger(logger, "scheduler"),
		sink:            sink,
		pollInterval:    pollInterval,
		dispatchTimeout: dispatchTimeout,
		maxAttempts:     opts.MaxDispatchAttempts,
		now:             now,
		newID:           newID,
	}
}

// AddOneShot schedules a single delivery at fireAt. The fire time must be in
// the future.
func (e *Engine) AddOneShot(ctx context.Context, title, body string, recipients []string, fireAt time.Time) (*Entry, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidSchedule)
	}
	now := e.now()
	if !fireAt.After(now) {
		return nil, fmt.Errorf("%w: fire time %s is not in the future", ErrInvalidSchedule, fireAt.Format(time.RFC3339))
	}

	entry := &Entry{
		ID:         e.newID(),
		Title:      title,
		Body:       body,
		Kind:       KindOneShot,
		Status:     StatusPending,
		Recipients: cloneRecipients(recipients),
		FireAt:     fireAt.UTC(),
	}
	if err := e.store.Insert(ctx, entry); err != nil {
		return nil, err
	}

	e.logger.Info("one-shot scheduled",
		logging.String(logging.FieldEntryID, entry.ID),
		logging.Time("fire_at", entry.FireAt))
	return entry, nil
}

// AddSwitch arms a dead-man's-switch: the payload fires interval from now
// unless reset with resetWord first, and keeps re-arming after every fire
// until cancelled. warnBefore lists lead times for pre-deadline warnings.
func (e *Engine) AddSwitch(ctx context.Context, title, body string, recipients []string, interval time.Duration, resetWord string, warnBefore []time.Duration) (*Entry, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidSchedule)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrInvalidSchedule)
	}
	if resetWord == "" {
		return nil, fmt.Errorf("%w: reset word is required", ErrInvalidSchedule)
	}
	warnings := make([]time.Duration, 0, len(warnBefore))
	for _, warning := range warnBefore {
		if warning <= 0 || warning >= interval {
			return nil, fmt.Errorf("%w: warning lead %s must fall inside the interval", ErrInvalidSchedule, warning)
		}
		warnings = append(warnings, warning)
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i] > warnings[j] })

	now := e.now()
	entry := &Entry{
		ID:         e.newID(),
		Title:      title,
		Body:       body,
		Kind:       KindDeadMansSwitch,
		Status:     StatusPending,
		Recipients: cloneRecipients(recipients),
		FireAt:     now.Add(interval).UTC(),
		Interval:   interval,
		ResetWord:  resetWord,
		WarnBefore: warnings,
	}
	if err := e.store.Insert(ctx, entry); err != nil {
		return nil, err
	}

	e.logger.Info("dead-man's-switch armed",
		logging.String(logging.FieldEntryID, entry.ID),
		logging.Duration("interval", interval),
		logging.Time("fire_at", entry.FireAt))
	return entry, nil
}

// Get fetches an entry by id.
func (e *Engine) Get(ctx context.Context, id string) (*Entry, error) {
	entry, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNotFound
	}
	return entry, nil
}

// Entries lists entries, optionally filtered by status.
func (e *Engine) Entries(ctx context.Context, statuses ...Status) ([]*Entry, error) {
	return e.store.List(ctx, statuses...)
}

// Cancel transitions a pending entry to cancelled. Cancelling a terminal
// entry returns ErrAlreadyTerminal.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	entry, err := e.Get(ctx, id)
	if err != nil {
		return err
	}
	if entry.IsTerminal() {
		return ErrAlreadyTerminal
	}
	ok, err := e.store.Cancel(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		// Lost a race with a dispatch or another cancel.
		return ErrAlreadyTerminal
	}
	e.logger.Info("entry cancelled", logging.String(logging.FieldEntryID, id))
	return nil
}

// Reset pushes a dead-man's-switch deadline out by its interval. The word
// must match the entry's reset word exactly. Resetting stays valid for as
// long as the switch is pending, including after it has already fired.
func (e *Engine) Reset(ctx context.Context, id, word string) (*Entry, error) {
	entry, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Kind != KindDeadMansSwitch {
		return nil, ErrNotSwitch
	}
	if entry.IsTerminal() {
		return nil, ErrAlreadyTerminal
	}
	if word != entry.ResetWord {
		return nil, ErrWrongResetWord
	}

	fireAt := e.now().Add(entry.Interval).UTC()
	ok, err := e.store.Rearm(ctx, id, fireAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyTerminal
	}

	e.logger.Info("switch reset",
		logging.String(logging.FieldEntryID, id),
		logging.Time("fire_at", fireAt))
	return e.Get(ctx, id)
}

// Start launches the background evaluation loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return errors.New("scheduler already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.ctx = runCtx
	e.cancel = cancel
	e.running = true

	e.wg.Add(1)
	go e.loop(runCtx)
	return nil
}

// Stop halts the evaluation loop and waits for an in-flight tick to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.running = false
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()

	e.tick(ctx)

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	started := time.Now()
	due, err := e.RunOnce(ctx)
	e.sink.TickCompleted(time.Since(started), due, err)
	if err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warn("scheduler tick failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the schedule database and daemon reachability"))
	}
}

// RunOnce performs a single evaluation pass: due entries dispatch, and
// dead-man's-switches with due warnings warn. It returns the number of due
// entries it attempted to dispatch.
func (e *Engine) RunOnce(ctx context.Context) (int, error) {
	pending, err := e.store.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pending entries: %w", err)
	}

	now := e.now()
	due := 0
	var firstErr error
	for _, entry := range pending {
		if ctx.Err() != nil {
			return due, ctx.Err()
		}
		if entry.DueAt(now) {
			due++
			if err := e.dispatch(ctx, entry, now); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}
		if entry.Kind == KindDeadMansSwitch {
			e.warn(ctx, entry, now)
		}
	}
	return due, firstErr
}

func (e *Engine) dispatch(ctx context.Context, entry *Entry, now time.Time) error {
	sendCtx, cancel := context.WithTimeout(ctx, e.dispatchTimeout)
	outcome, err := e.sender.Deliver(sendCtx, entry.Title, entry.Body, entry.Recipients)
	cancel()

	if err != nil || !outcome.Confirmed() {
		return e.recordFailure(ctx, entry, outcome, err)
	}

	switch entry.Kind {
	case KindDeadMansSwitch:
		fireAt := now.Add(entry.Interval).UTC()
		ok, rearmErr := e.store.Rearm(ctx, entry.ID, fireAt)
		if rearmErr != nil {
			return rearmErr
		}
		if !ok {
			// Cancelled while the payload was in flight; the delivery stands
			// but the switch stays down.
			e.sink.DispatchOutcome(string(entry.Kind), metrics.OutcomeSkipped)
			return nil
		}
		e.sink.DispatchOutcome(string(entry.Kind), metrics.OutcomeRearmed)
		e.logger.Info("switch fired and re-armed",
			logging.String(logging.FieldEntryID, entry.ID),
			logging.String("delivered", outcome.String()),
			logging.Time("fire_at", fireAt))
	default:
		ok, sentErr := e.store.MarkSent(ctx, entry.ID, now)
		if sentErr != nil {
			return sentErr
		}
		if !ok {
			e.sink.DispatchOutcome(string(entry.Kind), metrics.OutcomeSkipped)
			return nil
		}
		e.sink.DispatchOutcome(string(entry.Kind), metrics.OutcomeSent)
		e.logger.Info("one-shot dispatched",
			logging.String(logging.FieldEntryID, entry.ID),
			logging.String("delivered", outcome.String()))
	}
	return nil
}

func (e *Engine) recordFailure(ctx context.Context, entry *Entry, outcome delivery.Outcome, sendErr error) error {
	message := fmt.Sprintf("no recipients confirmed (%s)", outcome.String())
	if sendErr != nil {
		message = sendErr.Error()
	}

	if _, err := e.store.RecordDispatchFailure(ctx, entry.ID, message); err != nil {
		return err
	}
	attempts := entry.DispatchAttempts + 1

	// A switch deadline stays due until the payload lands, so retries come
	// for free on the next tick. Only one-shots honor the attempt ceiling.
	if entry.Kind == KindOneShot && e.maxAttempts > 0 && attempts >= e.maxAttempts {
		if _, err := e.store.Abandon(ctx, entry.ID, message); err != nil {
			return err
		}
		e.sink.DispatchOutcome(string(entry.Kind), metrics.OutcomeAbandoned)
		e.logger.Error("dispatch abandoned after repeated failures",
			logging.String(logging.FieldEntryID, entry.ID),
			logging.Int("attempts", attempts),
			logging.String(logging.FieldImpact, "scheduled delivery was never confirmed"))
		return nil
	}

	e.sink.DispatchOutcome(string(entry.Kind), metrics.OutcomeRetried)
	e.logger.Warn("dispatch failed; will retry",
		logging.String(logging.FieldEntryID, entry.ID),
		logging.Int("attempts", attempts),
		logging.String("reason", message))
	return nil
}

func (e *Engine) warn(ctx context.Context, entry *Entry, now time.Time) {
	// Collapse warnings that piled up while the daemon was unreachable into
	// the most recent one.
	target := entry.WarnedThrough
	for target < len(entry.WarnBefore) && !entry.FireAt.Add(-entry.WarnBefore[target]).After(now) {
		target++
	}
	if target == entry.WarnedThrough {
		return
	}

	remaining := entry.FireAt.Sub(now).Round(time.Second)
	title := fmt.Sprintf("Warning: %s", entry.Title)
	body := fmt.Sprintf("Dead-man's-switch %q fires in %s unless reset.", entry.Title, remaining)

	sendCtx, cancel := context.WithTimeout(ctx, e.dispatchTimeout)
	outcome, err := e.sender.Deliver(sendCtx, title, body, entry.Recipients)
	cancel()
	if err != nil || !outcome.Confirmed() {
		e.logger.Warn("warning delivery failed; will retry",
			logging.String(logging.FieldEntryID, entry.ID),
			logging.Error(err))
		return
	}

	if _, err := e.store.MarkWarned(ctx, entry.ID, target); err != nil {
		e.logger.Warn("failed to record warning progress", logging.Error(err))
		return
	}
	e.logger.Info("pre-deadline warning sent",
		logging.String(logging.FieldEntryID, entry.ID),
		logging.Duration("remaining", remaining))
}

func cloneRecipients(recipients []string) []string {
	if len(recipients) == 0 {
		return nil
	}
	out := make([]string, len(recipients))
	copy(out, recipients)
	return out
}
