package storage

import (
	"context"
	"errors"
	"strings"

	logx "acctcheck/pkg/logx"
)

// Store is the audit trail API.
type Store interface {
	AppendCheck(ctx context.Context, r CheckRecord) error
	// RecentChecks returns up to limit records, newest first.
	RecentChecks(ctx context.Context, limit int) ([]CheckRecord, error)
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

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
