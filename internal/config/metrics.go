package config

import (
	"fmt"
	"time"

	"github.com/alliefeldman/climatecoachbot/internal/models"
)

// MetricsConfig holds the window and fan-out settings of a metrics run
type MetricsConfig struct {
	Period        models.Period
	LastOffset    int
	CurrentOffset int
	Workers       int
	BotListFile   string
	AlignWindows  bool
	RunTimeout    time.Duration
}

// ScheduleConfig holds the periodic collection settings
type ScheduleConfig struct {
	Interval time.Duration
}

// DefaultMetricsConfig returns the default metrics configuration
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Period:        models.PeriodWeek,
		LastOffset:    1,
		CurrentOffset: 0,
		Workers:       4,
		RunTimeout:    time.Hour,
	}
}

// Validate checks the metrics configuration
func (c *MetricsConfig) Validate() error {
	if !c.Period.Valid() {
		return fmt.Errorf("METRICS_PERIOD must be day or week, got %q", c.Period)
	}
	if c.LastOffset < 0 || c.CurrentOffset < 0 {
		return fmt.Errorf("metrics offsets must be non-negative")
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1")
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("RUN_TIMEOUT_MINUTES must be positive")
	}
	return nil
}

func loadMetricsConfig() (*MetricsConfig, error) {
	cfg := DefaultMetricsConfig()
	cfg.Period = models.Period(getEnv("METRICS_PERIOD", string(cfg.Period)))
	cfg.BotListFile = getEnv("BOT_LIST_FILE", "")

	var err error
	if cfg.LastOffset, err = getEnvInt("METRICS_LAST_OFFSET", cfg.LastOffset); err != nil {
		return nil, err
	}
	if cfg.CurrentOffset, err = getEnvInt("METRICS_CURRENT_OFFSET", cfg.CurrentOffset); err != nil {
		return nil, err
	}
	if cfg.Workers, err = getEnvInt("WORKERS", cfg.Workers); err != nil {
		return nil, err
	}
	if cfg.AlignWindows, err = getEnvBool("ALIGN_WINDOWS", cfg.AlignWindows); err != nil {
		return nil, err
	}
	if cfg.RunTimeout, err = getEnvMinutes("RUN_TIMEOUT_MINUTES", int(cfg.RunTimeout/time.Minute)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadScheduleConfig() (*ScheduleConfig, error) {
	interval, err := getEnvMinutes("SCHEDULE_INTERVAL_MINUTES", 1440)
	if err != nil {
		return nil, err
	}
	return &ScheduleConfig{Interval: interval}, nil
}
