package scheduler

import (
	"time"

	"github.com/smallbiznis/tandem/internal/config"
)

// Config controls the sweeper loop. Interval and batch size are read from the
// invite policy on every tick so policy reloads take effect without restart.
type Config struct {
	Enabled    bool
	JobTimeout time.Duration
	// LockTTL bounds how long one replica owns a job run.
	LockTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		JobTimeout: 30 * time.Second,
		LockTTL:    time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

// ProvideConfig enables the sweeper unless SCHEDULER_ENABLED is false.
func ProvideConfig(cfg config.Config) Config {
	out := DefaultConfig()
	out.Enabled = cfg.SchedulerEnabled
	return out
}
