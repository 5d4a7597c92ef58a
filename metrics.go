package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// RunMetrics logs core stats every interval until ctx is canceled.
func RunMetrics(ctx context.Context, core *Core, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := core.Snapshot()
			slog.Info("metrics",
				"uptime", humanize.RelTime(start, time.Now(), "", ""),
				"online_users", humanize.Comma(int64(snap.OnlineUsers)),
				"ready_count", humanize.Comma(int64(snap.ReadyCount)),
				"active_matches", humanize.Comma(int64(snap.ActiveMatches)),
				"session_count", humanize.Comma(int64(snap.SessionCount)),
			)
		}
	}
}
