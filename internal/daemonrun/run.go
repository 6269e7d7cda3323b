package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"thorn/internal/briar"
	"thorn/internal/config"
	"thorn/internal/daemon"
	"thorn/internal/delivery"
	"thorn/internal/identity"
	"thorn/internal/ipc"
	"thorn/internal/logging"
	"thorn/internal/metrics"
	"thorn/internal/preflight"
	"thorn/internal/schedule"
	"thorn/internal/supervisor"
)

// Exit codes consumed by the init system supervising thornd: zero means a
// restart cannot help, one asks for a fresh process.
const (
	ExitNoRestart = 0
	ExitRestart   = 1
)

// Options configures daemon process runtime behavior.
type Options struct {
	SocketPath string
	LogLevel   string
}

// Run starts the thorn daemon runtime and blocks until the supervised
// messaging daemon dies or a shutdown signal arrives. The returned code maps
// the supervisor's restart verdict for the calling init system.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) (int, error) {
	if cfg == nil {
		return ExitNoRestart, fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return ExitNoRestart, err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("thornd-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return ExitNoRestart, fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update thornd.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "thornd-*.log", Exclude: []string{logPath}},
	)

	checks := preflight.RunAll(signalCtx, cfg)
	for _, check := range checks {
		if check.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", check.Name),
				logging.String("detail", check.Detail))
			continue
		}
		logger.Error("preflight check failed",
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String("check", check.Name),
			logging.String("detail", check.Detail))
	}
	if failed := preflight.Failed(checks); len(failed) > 0 {
		return ExitNoRestart, fmt.Errorf("preflight failed: %s", failed[0].Name)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "thornd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return ExitNoRestart, fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	secrets := identity.NewHolder()
	secret, err := identity.ReadSecretFile(cfg.Paths.SecretFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Error("no account secret on disk; run thorn secret init first",
				logging.String(logging.FieldEventType, "secret_missing"),
				logging.String("path", cfg.Paths.SecretFile),
				logging.String(logging.FieldErrorHint, "create the secret, then start the daemon again"))
			return ExitNoRestart, fmt.Errorf("account secret missing at %s", cfg.Paths.SecretFile)
		}
		return ExitNoRestart, fmt.Errorf("read account secret: %w", err)
	}
	if err := secrets.SetSecret(secret); err != nil {
		return ExitNoRestart, fmt.Errorf("hold account secret: %w", err)
	}
	for i := range secret {
		secret[i] = 0
	}

	store, err := schedule.Open(cfg)
	if err != nil {
		logger.Error("open schedule store", logging.Error(err))
		return ExitNoRestart, err
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	sink := metrics.NewPrometheusSink(registry)

	client := briar.NewClient(cfg.Briar.Port, cfg.Briar.AuthTokenFile,
		time.Duration(cfg.Briar.RequestTimeout)*time.Second)

	sup := supervisor.New(secrets, client.Ping, supervisor.Options{
		Logger:            logger,
		Metrics:           sink,
		JavaPath:          cfg.Briar.JavaPath,
		JarPath:           cfg.Briar.JarPath,
		Port:              cfg.Briar.Port,
		ReadyTimeout:      time.Duration(cfg.Supervisor.ReadyTimeout) * time.Second,
		ReadyPollInterval: time.Duration(cfg.Supervisor.ReadyPollInterval) * time.Second,
		LivenessInterval:  time.Duration(cfg.Supervisor.LivenessInterval) * time.Second,
		StopGrace:         time.Duration(cfg.Supervisor.StopGrace) * time.Second,
	})

	engine := schedule.NewEngine(store, delivery.NewBriarSender(client, logger), schedule.EngineOptions{
		Logger:              logger,
		Metrics:             sink,
		PollInterval:        time.Duration(cfg.Scheduler.PollInterval) * time.Second,
		DispatchTimeout:     time.Duration(cfg.Scheduler.DispatchTimeout) * time.Second,
		MaxDispatchAttempts: cfg.Scheduler.MaxDispatchAttempts,
	})

	d, err := daemon.New(cfg, store, engine, sup, client, logger, registry)
	if err != nil {
		return ExitNoRestart, fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = filepath.Join(cfg.Paths.DataDir, "thornd.sock")
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return ExitNoRestart, fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check the briar-headless jar and the account secret"))
		if errors.Is(err, supervisor.ErrNoCredential) {
			return ExitNoRestart, err
		}
		return ExitRestart, err
	}

	decision, monitorErr := d.Monitor(signalCtx)
	if errors.Is(monitorErr, context.Canceled) {
		logger.Info("thorn daemon shutting down")
		d.Stop()
		return ExitNoRestart, nil
	}

	d.Stop()
	if decision == supervisor.DecisionRestart {
		logger.Warn("messaging daemon died; requesting restart",
			logging.String(logging.FieldEventType, "daemon_restart_requested"),
			logging.Error(monitorErr))
		return ExitRestart, monitorErr
	}
	if monitorErr != nil {
		logger.Info("messaging daemon stopped for good", logging.Error(monitorErr))
	}
	return ExitNoRestart, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "thornd.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
