package database

import (
	"context"
	"time"

	"github.com/apex/log"
)

// RunCleanup prunes the journal to maxRequests entries every interval until
// ctx is done. It returns immediately if either value is zero.
func (db *DB) RunCleanup(ctx context.Context, maxRequests int, interval time.Duration) {
	if maxRequests <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.Prune(maxRequests)
			if err != nil {
				log.WithError(err).Error("journal cleanup failed")
				continue
			}
			if n > 0 {
				log.WithField("removed", n).Info("journal pruned")
			}
		}
	}
}
