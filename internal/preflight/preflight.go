package preflight

import (
	"context"

	"thorn/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config. The daemon runs
// these before launching the messaging daemon so misconfiguration surfaces as
// a readable report instead of a supervisor startup failure.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckJava(cfg.Briar.JavaPath),
		CheckHeadlessJar(cfg.Briar.JarPath),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDiskSpace("Data directory space", cfg.Paths.DataDir),
		CheckAPIBind(cfg.Paths.APIBind),
	}
	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
