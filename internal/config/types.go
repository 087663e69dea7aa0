package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the full on-disk configuration (JSON or YAML).
type Config struct {
	Scheduler SchedulerConfig `json:"scheduler"`
	Loop      LoopConfig      `json:"loop"`
	Logging   LoggingConfig   `json:"logging"`
	Journal   JournalConfig   `json:"journal"`
}

// SchedulerConfig maps onto scheduler.Config.
type SchedulerConfig struct {
	// Capacity is the fixed arena size (max simultaneously pending tasks).
	Capacity int `json:"capacity"`
	// Workers is the parallel pool size; 0 disables parallel dispatch.
	Workers int `json:"workers"`
}

// LoopConfig tunes the example host loop.
type LoopConfig struct {
	// FPS is the tick rate of the host loop.
	FPS float64 `json:"fps"`
	// FinishPending selects Terminate(true) at shutdown: pending tasks run
	// immediately instead of being discarded.
	FinishPending bool `json:"finish_pending"`
}

type LoggingConfig struct {
	Level   string     `json:"level"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// JournalConfig controls the optional fired-task history store.
type JournalConfig struct {
	Enabled bool `json:"enabled"`
	// Driver is "file" (JSON lines) or "sqlite".
	Driver string `json:"driver"`
	Path   string `json:"path"`
	// BusyTimeout applies to the sqlite driver only (e.g. "2s").
	BusyTimeout string `json:"busy_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{Capacity: 64, Workers: 4},
		Loop:      LoopConfig{FPS: 1, FinishPending: true},
		Logging:   LoggingConfig{Level: "info", Console: true},
		Journal:   JournalConfig{Driver: "file", Path: "./ticksched-journal.jsonl"},
	}
}

// Validate normalizes and checks the config. It mutates cfg in place
// (defaults for omitted fields) and returns the first problem found.
func (c *Config) Validate() error {
	if c.Scheduler.Capacity < 0 {
		return fmt.Errorf("scheduler.capacity: must be >= 0")
	}
	if c.Scheduler.Capacity == 0 {
		c.Scheduler.Capacity = 64
	}
	if c.Scheduler.Workers < 0 {
		return fmt.Errorf("scheduler.workers: must be >= 0")
	}

	if c.Loop.FPS < 0 {
		return fmt.Errorf("loop.fps: must be >= 0")
	}
	if c.Loop.FPS == 0 {
		c.Loop.FPS = 1
	}

	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}

	if c.Journal.Enabled {
		switch strings.ToLower(strings.TrimSpace(c.Journal.Driver)) {
		case "", "file":
			c.Journal.Driver = "file"
		case "sqlite":
			c.Journal.Driver = "sqlite"
		default:
			return fmt.Errorf("journal.driver: unknown driver %q", c.Journal.Driver)
		}
		if strings.TrimSpace(c.Journal.Path) == "" {
			return fmt.Errorf("journal.path: required when journal is enabled")
		}
		if _, err := ParseDurationField("journal.busy_timeout", c.Journal.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}

// defaultBusyTimeout applies when journal.busy_timeout is unset.
const defaultBusyTimeout = 2 * time.Second

// JournalBusyTimeout returns the parsed busy timeout, defaulted when unset.
// Validate must have accepted the config first.
func (c *Config) JournalBusyTimeout() time.Duration {
	d, _ := ParseDurationOrDefault("journal.busy_timeout", c.Journal.BusyTimeout, defaultBusyTimeout)
	return d
}
