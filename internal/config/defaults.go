package config

const (
	defaultDataDir       = "~/.local/share/thorn"
	defaultLogDir        = "~/.local/share/thorn/logs"
	defaultSecretFile    = "~/.config/thorn/secret"
	defaultAPIBind       = "127.0.0.1:7482"
	defaultJarPath       = "~/.local/share/thorn/briar-headless.jar"
	defaultJavaPath      = "java"
	defaultBriarPort     = 7010
	defaultAuthTokenFile = "~/.briar/auth_token"
	defaultBriarTimeout  = 10

	defaultReadyTimeout      = 60
	defaultReadyPollInterval = 1
	defaultLivenessInterval  = 5
	defaultStopGrace         = 10

	defaultPollInterval    = 15
	defaultDispatchTimeout = 30

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			SecretFile: defaultSecretFile,
			APIBind:    defaultAPIBind,
		},
		Briar: Briar{
			JarPath:        defaultJarPath,
			JavaPath:       defaultJavaPath,
			Port:           defaultBriarPort,
			AuthTokenFile:  defaultAuthTokenFile,
			RequestTimeout: defaultBriarTimeout,
		},
		Supervisor: Supervisor{
			ReadyTimeout:      defaultReadyTimeout,
			ReadyPollInterval: defaultReadyPollInterval,
			LivenessInterval:  defaultLivenessInterval,
			StopGrace:         defaultStopGrace,
		},
		Scheduler: Scheduler{
			PollInterval:    defaultPollInterval,
			DispatchTimeout: defaultDispatchTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
