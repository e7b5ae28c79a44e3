// Package storage is the optional announcement audit log: an insert-only
// record of every post the bot published. It is never consulted by the
// dedup logic — tracked state is in-memory only and starts empty.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"goalbot/internal/tracker"
	logx "goalbot/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the audit log.
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
	KeepDays    int           // prune horizon; default 14
}

// Store is the persistence API used by the workflow and the prune job.
type Store interface {
	// Record appends one published announcement.
	Record(ctx context.Context, kind string, g tracker.Goal, text string) error

	// Prune deletes announcements older than the keep horizon.
	Prune(ctx context.Context) (int64, error)

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
