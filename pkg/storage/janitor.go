package storage

import (
	"context"
	"log/slog"
	"time"
)

// RunEviction calls EvictOlderThan every interval until ctx is done.
// It runs one pass immediately.
func RunEviction(ctx context.Context, s Store, maxAge, interval time.Duration, logger *slog.Logger) {
	logger = loggerOr(logger)
	if interval <= 0 || maxAge <= 0 {
		logger.Info("cache eviction disabled")
		return
	}
	logger.Info("cache eviction running", "interval", interval.String(), "max_age", maxAge.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.EvictOlderThan(maxAge); err != nil {
			logger.Warn("eviction pass incomplete", "error", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("cache eviction stopped")
			return
		case <-ticker.C:
		}
	}
}
