// Package journal persists a history of fired and rejected tasks.
//
// The scheduler core itself keeps no state across restarts; the journal is
// an optional observability sink fed from the event bus by a Recorder.
package journal

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "ticksched/pkg/logx"
)

var ErrDisabled = errors.New("journal disabled")

// Config configures the journal.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file
//
// If Enabled is false, Open returns (nil, nil).
type Config struct {
	Enabled     bool
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry records one task lifecycle event.
// Keep it compact and schema-stable.
type Entry struct {
	At       time.Time     `json:"at"`
	Event    string        `json:"event"`
	Mode     string        `json:"mode"`
	Duration time.Duration `json:"duration"`
	Dispatch string        `json:"dispatch,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Store is the minimal persistence API used by the recorder.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, n int) ([]Entry, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if the journal is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown journal driver: " + cfg.Driver)
	}
}
