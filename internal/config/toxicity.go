package config

import (
	"fmt"
	"time"
)

// ToxicityConfig holds the toxicity scorer configuration
type ToxicityConfig struct {
	APIKey    string
	APIURL    string
	Threshold float64
	Retry     ScorerRetryConfig
}

// ScorerRetryConfig holds the soft quota policy settings for the scorer
type ScorerRetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	QPS         float64
}

// DefaultToxicityConfig returns the default toxicity configuration
func DefaultToxicityConfig() *ToxicityConfig {
	return &ToxicityConfig{
		APIURL:    "https://commentanalyzer.googleapis.com/v1alpha1/comments:analyze",
		Threshold: 0.1,
		Retry: ScorerRetryConfig{
			MaxAttempts: 8,
			BaseDelay:   time.Second,
			MaxDelay:    time.Minute,
			QPS:         1,
		},
	}
}

// Validate checks the toxicity configuration
func (c *ToxicityConfig) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("TOXIC_THRESHOLD must be within [0, 1], got %v", c.Threshold)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("SCORER_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

func loadToxicityConfig() (*ToxicityConfig, error) {
	cfg := DefaultToxicityConfig()
	cfg.APIKey = getEnv("PERSPECTIVE_API_KEY", "")
	cfg.APIURL = getEnv("PERSPECTIVE_API_URL", cfg.APIURL)

	var err error
	if cfg.Threshold, err = getEnvFloat("TOXIC_THRESHOLD", cfg.Threshold); err != nil {
		return nil, err
	}
	if cfg.Retry.MaxAttempts, err = getEnvInt("SCORER_MAX_ATTEMPTS", cfg.Retry.MaxAttempts); err != nil {
		return nil, err
	}
	baseMs, err := getEnvInt("SCORER_BASE_DELAY_MS", int(cfg.Retry.BaseDelay/time.Millisecond))
	if err != nil {
		return nil, err
	}
	maxMs, err := getEnvInt("SCORER_MAX_DELAY_MS", int(cfg.Retry.MaxDelay/time.Millisecond))
	if err != nil {
		return nil, err
	}
	cfg.Retry.BaseDelay = time.Duration(baseMs) * time.Millisecond
	cfg.Retry.MaxDelay = time.Duration(maxMs) * time.Millisecond
	if cfg.Retry.QPS, err = getEnvFloat("SCORER_QPS", cfg.Retry.QPS); err != nil {
		return nil, err
	}
	return cfg, nil
}
