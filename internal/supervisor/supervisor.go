package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"thorn/internal/identity"
	"thorn/internal/logging"
	"thorn/internal/metrics"
)

var (
	// ErrStartupTimeout indicates the daemon never answered its readiness
	// probe within the configured window.
	ErrStartupTimeout = errors.New("daemon did not become ready in time")

	// ErrLaunchFailed indicates the daemon process could not be started or
	// died before becoming ready.
	ErrLaunchFailed = errors.New("daemon launch failed")

	// ErrNoCredential indicates no account secret is held in memory, so the
	// daemon cannot be unlocked. Supervision must not start.
	ErrNoCredential = errors.New("no credential held for daemon startup")
)

// State tracks the supervised daemon lifecycle.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateReady    State = "ready"
	StateRunning  State = "running"
	StateDead     State = "dead"
)

// Decision is the supervisor's verdict after the daemon dies.
type Decision int

const (
	// DecisionRestart means the death was unexpected and a fresh process
	// should replace it.
	DecisionRestart Decision = iota
	// DecisionNoRestart means restarting cannot help, typically because the
	// stop was deliberate or the credential is gone.
	DecisionNoRestart
)

func (d Decision) String() string {
	if d == DecisionNoRestart {
		return "no-restart"
	}
	return "restart"
}

// Probe checks whether the daemon answers its API. A nil error means ready.
type Probe func(ctx context.Context) error

// commandContext is an injectable seam for tests.
var commandContext = exec.CommandContext

// livenessFailureLimit is how many consecutive probe failures count as a
// hung process even though the OS still reports it alive.
const livenessFailureLimit = 3

// Options tunes supervision. Zero durations fall back to defaults.
type Options struct {
	Logger  *slog.Logger
	Metrics metrics.Sink

	JavaPath string
	JarPath  string
	Port     int

	ReadyTimeout      time.Duration
	ReadyPollInterval time.Duration
	LivenessInterval  time.Duration
	StopGrace         time.Duration
}

// Supervisor owns one external messaging daemon process: it launches it with
// the held secret, watches it, and decides what its death means.
type Supervisor struct {
	secrets *identity.Holder
	probe   Probe
	logger  *slog.Logger
	sink    metrics.Sink

	javaPath string
	jarPath  string
	port     int

	readyTimeout      time.Duration
	readyPollInterval time.Duration
	livenessInterval  time.Duration
	stopGrace         time.Duration

	mu       sync.Mutex
	state    State
	cmd      *exec.Cmd
	waitDone chan error
	stopping bool
}

// New builds a supervisor around the secret holder and readiness probe.
func New(secrets *identity.Holder, probe Probe, opts Options) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	sink := opts.Metrics
	if sink == nil {
		sink = metrics.Noop{}
	}
	readyTimeout := opts.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = 60 * time.Second
	}
	readyPoll := opts.ReadyPollInterval
	if readyPoll <= 0 {
		readyPoll = time.Second
	}
	liveness := opts.LivenessInterval
	if liveness <= 0 {
		liveness = 5 * time.Second
	}
	stopGrace := opts.StopGrace
	if stopGrace <= 0 {
		stopGrace = 10 * time.Second
	}

	return &Supervisor{
		secrets:           secrets,
		probe:             probe,
		logger:            logging.NewComponentLogger(logger, "supervisor"),
		sink:              sink,
		javaPath:          opts.JavaPath,
		jarPath:           opts.JarPath,
		port:              opts.Port,
		readyTimeout:      readyTimeout,
		readyPollInterval: readyPoll,
		livenessInterval:  liveness,
		stopGrace:         stopGrace,
		state:             StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.sink.SupervisorState(string(state))
}

// Start launches the daemon process, feeds it the held secret over stdin,
// and blocks until the readiness probe answers or the window closes. The
// secret never appears in argv or the environment.
func (s *Supervisor) Start(ctx context.Context) error {
	secret, err := s.secrets.Secret()
	if err != nil {
		if errors.Is(err, identity.ErrNotSet) {
			return ErrNoCredential
		}
		return err
	}

	s.mu.Lock()
	if s.cmd != nil {
		s.mu.Unlock()
		return errors.New("daemon already supervised")
	}
	s.stopping = false
	s.mu.Unlock()
	s.setState(StateStarting)

	cmd := commandContext(context.Background(), s.javaPath, "-jar", s.jarPath, "--port", strconv.Itoa(s.port))
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.setState(StateDead)
		return fmt.Errorf("%w: stdin pipe: %v", ErrLaunchFailed, err)
	}

	if err := cmd.Start(); err != nil {
		s.setState(StateDead)
		return fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
	}()

	s.mu.Lock()
	s.cmd = cmd
	s.waitDone = waitDone
	s.mu.Unlock()

	if _, err := stdin.Write(append(secret, '\n')); err != nil {
		s.logger.Warn("failed to feed secret over stdin", logging.Error(err))
	}
	_ = stdin.Close()
	for i := range secret {
		secret[i] = 0
	}

	s.logger.Info("daemon launched",
		logging.Int("pid", cmd.Process.Pid),
		logging.Int("port", s.port))

	if err := s.awaitReady(ctx, waitDone); err != nil {
		s.terminate()
		s.clearHandle()
		s.setState(StateDead)
		return err
	}

	s.setState(StateRunning)
	s.logger.Info("daemon ready")
	return nil
}

func (s *Supervisor) awaitReady(ctx context.Context, waitDone chan error) error {
	deadline := time.NewTimer(s.readyTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.readyPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case waitErr := <-waitDone:
			// Put the result back for Monitor and Stop.
			waitDone <- waitErr
			if waitErr == nil {
				return fmt.Errorf("%w: process exited during startup", ErrLaunchFailed)
			}
			return fmt.Errorf("%w: process exited during startup: %v", ErrLaunchFailed, waitErr)
		case <-deadline.C:
			return ErrStartupTimeout
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, s.readyPollInterval)
			err := s.probe(probeCtx)
			cancel()
			if err == nil {
				s.setState(StateReady)
				return nil
			}
		}
	}
}

// Monitor blocks until the daemon dies or ctx is cancelled, and returns what
// to do about it. A hung process that stops answering the liveness probe is
// terminated and treated as a death.
func (s *Supervisor) Monitor(ctx context.Context) (Decision, error) {
	s.mu.Lock()
	waitDone := s.waitDone
	s.mu.Unlock()
	if waitDone == nil {
		return DecisionNoRestart, errors.New("no supervised process")
	}

	ticker := time.NewTicker(s.livenessInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return DecisionNoRestart, ctx.Err()
		case waitErr := <-waitDone:
			waitDone <- waitErr
			return s.decide(waitErr)
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, s.livenessInterval)
			err := s.probe(probeCtx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			s.logger.Warn("liveness probe failed",
				logging.Int("consecutive", failures),
				logging.Error(err))
			if failures >= livenessFailureLimit {
				s.logger.Error("daemon unresponsive; terminating",
					logging.String(logging.FieldImpact, "deliveries pause until the daemon is back"))
				s.terminate()
				waitErr := <-waitDone
				waitDone <- waitErr
				s.clearHandle()
				s.setState(StateDead)
				return DecisionRestart, fmt.Errorf("daemon stopped answering: %w", err)
			}
		}
	}
}

func (s *Supervisor) decide(waitErr error) (Decision, error) {
	s.clearHandle()
	s.setState(StateDead)

	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()

	if stopping {
		return DecisionNoRestart, nil
	}
	if !s.secrets.HasSecret() {
		// Nothing to unlock the next process with.
		return DecisionNoRestart, waitErr
	}
	if waitErr == nil {
		return DecisionRestart, errors.New("daemon exited unexpectedly")
	}
	return DecisionRestart, fmt.Errorf("daemon died: %w", waitErr)
}

// Stop shuts the daemon down: SIGTERM, a grace window, then SIGKILL. It is
// safe to call when nothing is running.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopping = true
	running := s.cmd != nil
	s.mu.Unlock()

	if !running {
		return
	}

	s.terminate()
	s.clearHandle()
	s.setState(StateDead)
	s.logger.Info("daemon stopped")
}

// terminate brings the process down without deciding what that means.
func (s *Supervisor) terminate() {
	s.mu.Lock()
	cmd := s.cmd
	waitDone := s.waitDone
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		s.logger.Warn("SIGTERM failed", logging.Error(err))
	}

	select {
	case waitErr := <-waitDone:
		waitDone <- waitErr
	case <-time.After(s.stopGrace):
		s.logger.Warn("daemon ignored SIGTERM; killing")
		_ = cmd.Process.Kill()
		waitErr := <-waitDone
		waitDone <- waitErr
	}
}

func (s *Supervisor) clearHandle() {
	s.mu.Lock()
	s.cmd = nil
	s.mu.Unlock()
}
