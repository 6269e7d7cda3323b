package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeBriar(); err != nil {
		return err
	}
	c.normalizeTimings()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.SecretFile, err = expandPath(c.Paths.SecretFile); err != nil {
		return fmt.Errorf("paths.secret_file: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeBriar() error {
	var err error
	if c.Briar.JarPath, err = expandPath(c.Briar.JarPath); err != nil {
		return fmt.Errorf("briar.jar_path: %w", err)
	}
	if c.Briar.AuthTokenFile, err = expandPath(c.Briar.AuthTokenFile); err != nil {
		return fmt.Errorf("briar.auth_token_file: %w", err)
	}
	c.Briar.JavaPath = strings.TrimSpace(c.Briar.JavaPath)
	if c.Briar.JavaPath == "" {
		c.Briar.JavaPath = defaultJavaPath
	}
	if c.Briar.Port == 0 {
		c.Briar.Port = defaultBriarPort
	}
	if c.Briar.RequestTimeout <= 0 {
		c.Briar.RequestTimeout = defaultBriarTimeout
	}
	return nil
}

func (c *Config) normalizeTimings() {
	if c.Supervisor.ReadyTimeout <= 0 {
		c.Supervisor.ReadyTimeout = defaultReadyTimeout
	}
	if c.Supervisor.ReadyPollInterval <= 0 {
		c.Supervisor.ReadyPollInterval = defaultReadyPollInterval
	}
	if c.Supervisor.LivenessInterval <= 0 {
		c.Supervisor.LivenessInterval = defaultLivenessInterval
	}
	if c.Supervisor.StopGrace <= 0 {
		c.Supervisor.StopGrace = defaultStopGrace
	}
	if c.Scheduler.PollInterval <= 0 {
		c.Scheduler.PollInterval = defaultPollInterval
	}
	if c.Scheduler.DispatchTimeout <= 0 {
		c.Scheduler.DispatchTimeout = defaultDispatchTimeout
	}
	if c.Scheduler.MaxDispatchAttempts < 0 {
		c.Scheduler.MaxDispatchAttempts = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}
