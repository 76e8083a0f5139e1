package storage

import (
	"context"
	"errors"
	"strings"

	logx "guildmirror/pkg/logx"
)

// Store persists run history.
type Store interface {
	// RecordRun stores rec and returns its assigned id.
	RecordRun(ctx context.Context, rec RunRecord) (int64, error)
	// RecentRuns returns up to n runs, newest first.
	RecentRuns(ctx context.Context, n int) ([]RunRecord, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Keep <= 0 {
		cfg.Keep = DefaultKeep
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
