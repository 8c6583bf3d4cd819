package db

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runRetentionOnce performs a single pass of retention cleanup, deleting
// live events whose receipt time is older than maxAge.
func runRetentionOnce(db *gorm.DB, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res := db.Where("created_at < ?", cutoff).Delete(&LiveEvent{})
	return res.RowsAffected, res.Error
}

// StartRetentionWorker launches a background goroutine that runs the
// retention cleanup once at startup and then once per day. A retention of
// 0 days disables the worker.
func StartRetentionWorker(db *gorm.DB, retentionDays int, logger *zap.Logger) {
	if retentionDays <= 0 {
		return
	}
	maxAge := time.Duration(retentionDays) * 24 * time.Hour

	go func() {
		if n, err := runRetentionOnce(db, maxAge); err != nil {
			logger.Error("retention cleanup failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("retention cleanup", zap.Int64("deleted", n))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			if n, err := runRetentionOnce(db, maxAge); err != nil {
				logger.Error("retention cleanup failed", zap.Error(err))
			} else if n > 0 {
				logger.Info("retention cleanup", zap.Int64("deleted", n))
			}
		}
	}()
}
