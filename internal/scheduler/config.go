package scheduler

import (
	"time"

	"github.com/smallbiznis/revlens/internal/config"
)

const (
	JobCapture   = "capture"
	JobRetention = "retention"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval      time.Duration
	BatchSize        int
	CaptureTimeout   time.Duration
	RetentionTimeout time.Duration
	EnabledJobs      []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:      24 * time.Hour,
		BatchSize:        25,
		CaptureTimeout:   5 * time.Minute,
		RetentionTimeout: 10 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:    cfg.Capture.Interval,
		BatchSize:      cfg.Capture.BatchSize,
		CaptureTimeout: cfg.Capture.Timeout,
		EnabledJobs:    cfg.Capture.EnabledJobs,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.CaptureTimeout <= 0 {
		c.CaptureTimeout = defaults.CaptureTimeout
	}
	if c.RetentionTimeout <= 0 {
		c.RetentionTimeout = defaults.RetentionTimeout
	}
	return c
}
