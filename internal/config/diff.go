package config

import (
	"strings"

	logx "ticksched/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections and structured
// attrs for logging a config reload.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 8)

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Int("scheduler.capacity", newCfg.Scheduler.Capacity),
			logx.Int("scheduler.workers", newCfg.Scheduler.Workers),
		)
	}

	if oldCfg.Loop != newCfg.Loop {
		changed = append(changed, "loop")
		attrs = append(attrs,
			logx.Float64("loop.fps", newCfg.Loop.FPS),
			logx.Bool("loop.finish_pending", newCfg.Loop.FinishPending),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Journal != newCfg.Journal {
		changed = append(changed, "journal")
		attrs = append(attrs,
			logx.Bool("journal.enabled", newCfg.Journal.Enabled),
			logx.String("journal.driver", strings.TrimSpace(newCfg.Journal.Driver)),
		)
	}

	return changed, attrs
}
