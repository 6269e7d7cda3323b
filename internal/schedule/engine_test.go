package schedule_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"thorn/internal/delivery"
	"thorn/internal/schedule"
	"thorn/internal/testsupport"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newEngine(t *testing.T, opts schedule.EngineOptions) (*schedule.Engine, *delivery.Recorder, *fakeClock) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	recorder := delivery.NewRecorder()
	clock := newFakeClock()
	opts.Now = clock.Now
	return schedule.NewEngine(store, recorder, opts), recorder, clock
}

func TestOneShotFiresExactlyOnce(t *testing.T) {
	engine, recorder, clock := newEngine(t, schedule.EngineOptions{})
	ctx := context.Background()

	entry, err := engine.AddOneShot(ctx, "Reminder", "water the plants", nil, clock.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("AddOneShot: %v", err)
	}

	// Not due yet.
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if recorder.CallCount() != 0 {
		t.Fatalf("fired early: %d calls", recorder.CallCount())
	}

	clock.Advance(time.Hour)
	due, err := engine.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if due != 1 || recorder.CallCount() != 1 {
		t.Fatalf("expected one dispatch, got due=%d calls=%d", due, recorder.CallCount())
	}

	// Later ticks must not re-deliver.
	clock.Advance(time.Hour)
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if recorder.CallCount() != 1 {
		t.Fatalf("one-shot delivered twice: %d calls", recorder.CallCount())
	}

	fetched, err := engine.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != schedule.StatusSent || fetched.SentAt == nil {
		t.Fatalf("unexpected state: %#v", fetched)
	}
}

func TestAddOneShotRejectsPastFireTime(t *testing.T) {
	engine, _, clock := newEngine(t, schedule.EngineOptions{})

	_, err := engine.AddOneShot(context.Background(), "Late", "body", nil, clock.Now().Add(-time.Minute))
	if !errors.Is(err, schedule.ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
	_, err = engine.AddOneShot(context.Background(), "", "body", nil, clock.Now().Add(time.Minute))
	if !errors.Is(err, schedule.ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule for empty title, got %v", err)
	}
}

func TestSwitchFiresAndRearms(t *testing.T) {
	engine, recorder, clock := newEngine(t, schedule.EngineOptions{})
	ctx := context.Background()

	entry, err := engine.AddSwitch(ctx, "Check in", "payload", []string{"alice"}, time.Hour, "alive", nil)
	if err != nil {
		t.Fatalf("AddSwitch: %v", err)
	}

	clock.Advance(time.Hour)
	firedAt := clock.Now()
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if recorder.CallCount() != 1 {
		t.Fatalf("expected 1 delivery, got %d", recorder.CallCount())
	}

	fetched, err := engine.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != schedule.StatusPending {
		t.Fatalf("switch must stay pending after firing, got %s", fetched.Status)
	}
	want := firedAt.Add(time.Hour)
	if !fetched.FireAt.Equal(want) {
		t.Fatalf("re-arm deadline: got %v want %v", fetched.FireAt, want)
	}

	// It keeps firing every interval until cancelled.
	clock.Advance(time.Hour)
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if recorder.CallCount() != 2 {
		t.Fatalf("expected repeated firing, got %d calls", recorder.CallCount())
	}
}

func TestResetPushesDeadline(t *testing.T) {
	engine, recorder, clock := newEngine(t, schedule.EngineOptions{})
	ctx := context.Background()

	entry, err := engine.AddSwitch(ctx, "Check in", "payload", nil, time.Hour, "alive", nil)
	if err != nil {
		t.Fatalf("AddSwitch: %v", err)
	}

	// Reset at 59 minutes pushes the deadline to 1h59m.
	clock.Advance(59 * time.Minute)
	updated, err := engine.Reset(ctx, entry.ID, "alive")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	want := clock.Now().Add(time.Hour)
	if !updated.FireAt.Equal(want) {
		t.Fatalf("deadline after reset: got %v want %v", updated.FireAt, want)
	}

	// The original deadline passes without a dispatch.
	clock.Advance(time.Minute)
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if recorder.CallCount() != 0 {
		t.Fatalf("fired despite reset: %d calls", recorder.CallCount())
	}

	clock.Advance(59 * time.Minute)
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if recorder.CallCount() != 1 {
		t.Fatalf("expected fire at pushed deadline, got %d calls", recorder.CallCount())
	}
}

func TestResetValidation(t *testing.T) {
	engine, _, clock := newEngine(t, schedule.EngineOptions{})
	ctx := context.Background()

	entry, err := engine.AddSwitch(ctx, "Check in", "payload", nil, time.Hour, "alive", nil)
	if err != nil {
		t.Fatalf("AddSwitch: %v", err)
	}

	if _, err := engine.Reset(ctx, entry.ID, "Alive"); !errors.Is(err, schedule.ErrWrongResetWord) {
		t.Fatalf("reset word is case sensitive, got %v", err)
	}
	if _, err := engine.Reset(ctx, "missing", "alive"); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	oneShot, err := engine.AddOneShot(ctx, "Reminder", "body", nil, clock.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("AddOneShot: %v", err)
	}
	if _, err := engine.Reset(ctx, oneShot.ID, "alive"); !errors.Is(err, schedule.ErrNotSwitch) {
		t.Fatalf("expected ErrNotSwitch, got %v", err)
	}

	if err := engine.Cancel(ctx, entry.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := engine.Reset(ctx, entry.ID, "alive"); !errors.Is(err, schedule.ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
	}
}

func TestResetValidAfterSwitchFired(t *testing.T) {
	engine, recorder, clock := newEngine(t, schedule.EngineOptions{})
	ctx := context.Background()

	entry, err := engine.AddSwitch(ctx, "Check in", "payload", nil, time.Hour, "alive", nil)
	if err != nil {
		t.Fatalf("AddSwitch: %v", err)
	}

	clock.Advance(time.Hour)
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if recorder.CallCount() != 1 {
		t.Fatalf("expected switch to fire, got %d calls", recorder.CallCount())
	}

	// A late reset still works: the switch is pending again.
	if _, err := engine.Reset(ctx, entry.ID, "alive"); err != nil {
		t.Fatalf("Reset after fire: %v", err)
	}
}

func TestCancelledEntryNeverFires(t *testing.T) {
	engine, recorder, clock := newEngine(t, schedule.EngineOptions{})
	ctx := context.Background()

	entry, err := engine.AddOneShot(ctx, "Reminder", "body", nil, clock.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("AddOneShot: %v", err)
	}
	if err := engine.Cancel(ctx, entry.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := engine.Cancel(ctx, entry.ID); !errors.Is(err, schedule.ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
	}

	clock.Advance(2 * time.Hour)
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if recorder.CallCount() != 0 {
		t.Fatalf("cancelled entry fired: %d calls", recorder.CallCount())
	}
}

func TestFailedDispatchRetriesThenAbandons(t *testing.T) {
	engine, recorder, clock := newEngine(t, schedule.EngineOptions{MaxDispatchAttempts: 2})
	ctx := context.Background()

	entry, err := engine.AddOneShot(ctx, "Reminder", "body", nil, clock.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("AddOneShot: %v", err)
	}
	recorder.NextErr = delivery.ErrDaemonUnavailable

	clock.Advance(time.Minute)
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	fetched, err := engine.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != schedule.StatusPending || fetched.DispatchAttempts != 1 {
		t.Fatalf("expected pending retry state, got %#v", fetched)
	}
	if !strings.Contains(fetched.LastError, "unavailable") {
		t.Fatalf("last error not recorded: %q", fetched.LastError)
	}

	// Second failure hits the ceiling.
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	fetched, err = engine.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != schedule.StatusCancelled {
		t.Fatalf("expected abandoned entry, got %s", fetched.Status)
	}
	if fetched.LastError == "" {
		t.Fatal("abandoned entry must keep its last error")
	}
	if recorder.CallCount() != 2 {
		t.Fatalf("expected 2 attempts, got %d", recorder.CallCount())
	}
}

func TestSwitchIgnoresAttemptCeiling(t *testing.T) {
	engine, recorder, clock := newEngine(t, schedule.EngineOptions{MaxDispatchAttempts: 1})
	ctx := context.Background()

	entry, err := engine.AddSwitch(ctx, "Check in", "payload", nil, time.Minute, "alive", nil)
	if err != nil {
		t.Fatalf("AddSwitch: %v", err)
	}
	recorder.NextErr = delivery.ErrDaemonUnavailable

	clock.Advance(time.Minute)
	for i := 0; i < 3; i++ {
		if _, err := engine.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
	}

	fetched, err := engine.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != schedule.StatusPending {
		t.Fatalf("switch must never be abandoned, got %s", fetched.Status)
	}

	// Once the daemon comes back the payload lands and the switch re-arms.
	recorder.NextErr = nil
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	fetched, err = engine.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != schedule.StatusPending || fetched.DispatchAttempts != 0 {
		t.Fatalf("expected re-armed switch, got %#v", fetched)
	}
	if !fetched.FireAt.After(clock.Now()) {
		t.Fatalf("deadline not pushed after recovery: %v", fetched.FireAt)
	}
}

func TestUnconfirmedOutcomeCountsAsFailure(t *testing.T) {
	engine, recorder, clock := newEngine(t, schedule.EngineOptions{})
	ctx := context.Background()

	entry, err := engine.AddOneShot(ctx, "Reminder", "body", []string{"alice"}, clock.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("AddOneShot: %v", err)
	}
	recorder.NextOutcome = delivery.Outcome{Requested: 1, Failed: 1}

	clock.Advance(time.Minute)
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	fetched, err := engine.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != schedule.StatusPending || fetched.DispatchAttempts != 1 {
		t.Fatalf("unconfirmed outcome must retry, got %#v", fetched)
	}
}

func TestWarningsFireOncePerThreshold(t *testing.T) {
	engine, recorder, clock := newEngine(t, schedule.EngineOptions{})
	ctx := context.Background()

	_, err := engine.AddSwitch(ctx, "Check in", "payload", nil, 48*time.Hour, "alive",
		[]time.Duration{24 * time.Hour, 2 * time.Hour})
	if err != nil {
		t.Fatalf("AddSwitch: %v", err)
	}

	// Before the first threshold: silence.
	clock.Advance(23 * time.Hour)
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if recorder.CallCount() != 0 {
		t.Fatalf("warned early: %d calls", recorder.CallCount())
	}

	// 24h before the deadline.
	clock.Advance(time.Hour)
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	calls := recorder.Calls()
	if len(calls) != 1 || !strings.HasPrefix(calls[0].Title, "Warning:") {
		t.Fatalf("expected one warning, got %#v", calls)
	}

	// Same threshold must not warn twice.
	clock.Advance(time.Hour)
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if recorder.CallCount() != 1 {
		t.Fatalf("warning repeated: %d calls", recorder.CallCount())
	}

	// 2h before the deadline.
	clock.Advance(21 * time.Hour)
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if recorder.CallCount() != 2 {
		t.Fatalf("expected second warning, got %d calls", recorder.CallCount())
	}
}

func TestResetClearsWarningProgress(t *testing.T) {
	engine, recorder, clock := newEngine(t, schedule.EngineOptions{})
	ctx := context.Background()

	entry, err := engine.AddSwitch(ctx, "Check in", "payload", nil, 48*time.Hour, "alive",
		[]time.Duration{24 * time.Hour})
	if err != nil {
		t.Fatalf("AddSwitch: %v", err)
	}

	clock.Advance(24 * time.Hour)
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if recorder.CallCount() != 1 {
		t.Fatalf("expected warning, got %d calls", recorder.CallCount())
	}

	if _, err := engine.Reset(ctx, entry.ID, "alive"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	// The next cycle warns again at its own threshold.
	clock.Advance(24 * time.Hour)
	if _, err := engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if recorder.CallCount() != 2 {
		t.Fatalf("expected warning in new cycle, got %d calls", recorder.CallCount())
	}
}

func TestAddSwitchValidation(t *testing.T) {
	engine, _, _ := newEngine(t, schedule.EngineOptions{})
	ctx := context.Background()

	cases := []struct {
		name      string
		title     string
		interval  time.Duration
		resetWord string
		warns     []time.Duration
	}{
		{"zero interval", "t", 0, "w", nil},
		{"empty reset word", "t", time.Hour, "", nil},
		{"empty title", "", time.Hour, "w", nil},
		{"warning outside interval", "t", time.Hour, "w", []time.Duration{2 * time.Hour}},
		{"non-positive warning", "t", time.Hour, "w", []time.Duration{0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.AddSwitch(ctx, tc.title, "body", nil, tc.interval, tc.resetWord, tc.warns)
			if !errors.Is(err, schedule.ErrInvalidSchedule) {
				t.Fatalf("expected ErrInvalidSchedule, got %v", err)
			}
		})
	}
}

func TestEngineGeneratesUniqueIDs(t *testing.T) {
	engine, _, clock := newEngine(t, schedule.EngineOptions{})
	ctx := context.Background()

	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := engine.AddOneShot(ctx, "Reminder", "body", nil, clock.Now().Add(time.Hour))
			if err != nil {
				t.Errorf("AddOneShot: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[entry.ID] {
				t.Errorf("duplicate id %s", entry.ID)
			}
			seen[entry.ID] = true
		}()
	}
	wg.Wait()
}

func TestStartStopLifecycle(t *testing.T) {
	engine, _, _ := newEngine(t, schedule.EngineOptions{PollInterval: time.Hour})

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := engine.Start(context.Background()); err == nil {
		t.Fatal("expected error on double start")
	}
	engine.Stop()
	engine.Stop() // idempotent
}
