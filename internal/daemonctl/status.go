package daemonctl

import (
	"context"
	"errors"
	"time"

	"thorn/internal/config"
	"thorn/internal/ipc"
	"thorn/internal/schedule"
)

// BuildStatusSnapshot collects daemon status over IPC, falling back to a
// direct read of the schedule database when the daemon is offline.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*ipc.StatusResponse, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	status := &ipc.StatusResponse{SupervisorState: "offline"}

	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			status = resp
		}
	}

	if !status.Running && len(status.EntryStats) == 0 {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		store, openErr := schedule.Open(cfg)
		if openErr == nil {
			stats, statsErr := store.Stats(queryCtx)
			path := store.Path()
			_ = store.Close()
			if statsErr == nil {
				status.EntryStats = make(map[string]int, len(stats))
				for entryStatus, count := range stats {
					status.EntryStats[string(entryStatus)] = count
				}
				status.ScheduleDBPath = path
			}
		}
	}

	return status, nil
}
