package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"

	"thorn/internal/api"
	"thorn/internal/briar"
	"thorn/internal/config"
	"thorn/internal/logging"
	"thorn/internal/schedule"
	"thorn/internal/supervisor"
)

// Daemon owns the scheduler engine and the messaging daemon supervisor, and
// enforces single-instance execution through a file lock.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *schedule.Store
	engine   *schedule.Engine
	sup      *supervisor.Supervisor
	briar    *briar.Client
	gatherer prometheus.Gatherer

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	PID             int
	SupervisorState string
	EntryStats      map[schedule.Status]int
	ScheduleDBPath  string
	LockPath        string
}

// New constructs a daemon with initialized dependencies. gatherer may be nil
// when no metrics endpoint is wanted.
func New(cfg *config.Config, store *schedule.Store, engine *schedule.Engine, sup *supervisor.Supervisor, client *briar.Client, logger *slog.Logger, gatherer prometheus.Gatherer) (*Daemon, error) {
	if cfg == nil || store == nil || engine == nil || sup == nil {
		return nil, errors.New("daemon requires config, store, engine, and supervisor")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "thornd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		engine:   engine,
		sup:      sup,
		briar:    client,
		gatherer: gatherer,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	apiSrv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = apiSrv
	return d, nil
}

// Start acquires the instance lock, brings the messaging daemon up, and
// launches the scheduler and API server. It blocks until the messaging
// daemon is ready or its startup fails.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another thorn daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.sup.Start(runCtx); err != nil {
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start messaging daemon: %w", err)
	}

	if err := d.engine.Start(runCtx); err != nil {
		d.sup.Stop()
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start scheduler: %w", err)
	}

	if err := d.api.start(runCtx); err != nil {
		d.engine.Stop()
		d.sup.Stop()
		d.releaseLock()
		cancel()
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("thorn daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Monitor blocks until the supervised messaging daemon dies and returns the
// restart verdict.
func (d *Daemon) Monitor(ctx context.Context) (supervisor.Decision, error) {
	return d.sup.Monitor(ctx)
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.engine.Stop()
	d.sup.Stop()
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("thorn daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// AddEntry creates a scheduled delivery from a transport request.
func (d *Daemon) AddEntry(ctx context.Context, req api.AddEntryRequest) (*schedule.Entry, error) {
	kind, ok := schedule.ParseKind(req.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", schedule.ErrInvalidSchedule, req.Kind)
	}
	switch kind {
	case schedule.KindDeadMansSwitch:
		warnings := make([]time.Duration, 0, len(req.WarnBeforeSeconds))
		for _, sec := range req.WarnBeforeSeconds {
			warnings = append(warnings, time.Duration(sec)*time.Second)
		}
		return d.engine.AddSwitch(ctx, req.Title, req.Body, req.Recipients,
			time.Duration(req.IntervalSeconds)*time.Second, req.ResetWord, warnings)
	default:
		return d.engine.AddOneShot(ctx, req.Title, req.Body, req.Recipients, req.FireAt)
	}
}

// CancelEntry cancels a pending entry.
func (d *Daemon) CancelEntry(ctx context.Context, id string) error {
	return d.engine.Cancel(ctx, id)
}

// ResetEntry pushes a dead-man's-switch deadline out by its interval.
func (d *Daemon) ResetEntry(ctx context.Context, id, word string) (*schedule.Entry, error) {
	return d.engine.Reset(ctx, id, word)
}

// GetEntry fetches an entry by id.
func (d *Daemon) GetEntry(ctx context.Context, id string) (*schedule.Entry, error) {
	return d.engine.Get(ctx, id)
}

// ListEntries returns entries filtered by optional statuses.
func (d *Daemon) ListEntries(ctx context.Context, statuses []schedule.Status) ([]*schedule.Entry, error) {
	return d.engine.Entries(ctx, statuses...)
}

// Contacts lists the messaging daemon's known recipients.
func (d *Daemon) Contacts(ctx context.Context) ([]briar.Contact, error) {
	if d.briar == nil {
		return nil, errors.New("messaging client unavailable")
	}
	return d.briar.Contacts(ctx)
}

// ContactLink returns the daemon's own contact link for pairing.
func (d *Daemon) ContactLink(ctx context.Context) (string, error) {
	if d.briar == nil {
		return "", errors.New("messaging client unavailable")
	}
	return d.briar.ContactLink(ctx)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("failed to read schedule stats", logging.Error(err))
	}
	return Status{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		SupervisorState: string(d.sup.State()),
		EntryStats:      stats,
		ScheduleDBPath:  d.store.Path(),
		LockPath:        d.lockPath,
	}
}
