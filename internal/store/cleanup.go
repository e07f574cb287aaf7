package store

import (
	"context"
	"log/slog"
	"time"
)

const cleanupWorkerInterval = 5 * time.Minute

// StartCleanupWorker runs a background goroutine that periodically
// sweeps expired session slots. Slots are tab-scoped ephemeral state;
// anything a tab has not touched within ttl is dead weight.
func StartCleanupWorker(ctx context.Context, repo Repository, ttl time.Duration) {
	ticker := time.NewTicker(cleanupWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("slot cleanup worker started", "interval", cleanupWorkerInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				removed, err := repo.CleanupExpiredSlots(ctx, ttl)
				if err != nil {
					slog.Error("slot cleanup sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					slog.Info("slot cleanup removed expired slots", "count", removed)
				}
			case <-ctx.Done():
				slog.Info("slot cleanup worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
