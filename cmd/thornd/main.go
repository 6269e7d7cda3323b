package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"thorn/internal/config"
	"thorn/internal/daemonrun"
)

func main() {
	var socketPath string
	var configPath string
	var logLevel string
	flag.StringVar(&socketPath, "socket", "", "path to the IPC socket")
	flag.StringVar(&configPath, "config", "", "configuration file path")
	flag.StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "thornd: load config: %v\n", err)
		os.Exit(daemonrun.ExitNoRestart)
	}

	code, err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		SocketPath: socketPath,
		LogLevel:   logLevel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "thornd: %v\n", err)
	}
	os.Exit(code)
}
