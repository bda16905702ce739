package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Checkpointer is the part of the database manager the checkpoint job needs.
type Checkpointer interface {
	CheckpointWAL(mode string) error
}

// CheckpointJob folds the SQLite WAL back into the main database file so it
// does not grow without bound under steady ingestion.
func CheckpointJob(db Checkpointer, interval time.Duration) Job {
	return Job{
		Name:     "wal_checkpoint",
		Interval: interval,
		Run: func(ctx context.Context) error {
			if err := db.CheckpointWAL("TRUNCATE"); err != nil {
				return fmt.Errorf("wal checkpoint: %w", err)
			}
			return nil
		},
	}
}

// Reloader is implemented by the MaxMind resolver.
type Reloader interface {
	Reload() error
}

// GeoLiteReloadJob reopens the GeoLite2 database when the file on disk has
// been replaced since the last load.
func GeoLiteReloadJob(path string, r Reloader, interval time.Duration, logger *slog.Logger) Job {
	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}

	return Job{
		Name:     "geolite_reload",
		Interval: interval,
		Run: func(ctx context.Context) error {
			info, err := os.Stat(path)
			if err != nil {
				logger.Debug("GeoLite database not present, skipping reload", slog.String("path", path))
				return nil
			}
			if !info.ModTime().After(lastMod) {
				return nil
			}
			if err := r.Reload(); err != nil {
				return fmt.Errorf("geolite reload: %w", err)
			}
			lastMod = info.ModTime()
			logger.Info("GeoLite database reloaded", slog.Time("modified", lastMod))
			return nil
		},
	}
}
