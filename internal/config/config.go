package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the service configuration
type Config struct {
	Port               string
	DBConnectionString string
	LogLevel           logrus.Level
	Repositories       []string

	GitHub   *GitHubConfig
	Toxicity *ToxicityConfig
	Metrics  *MetricsConfig
	Schedule *ScheduleConfig
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	github, err := loadGitHubConfig()
	if err != nil {
		return nil, err
	}
	toxicity, err := loadToxicityConfig()
	if err != nil {
		return nil, err
	}
	metrics, err := loadMetricsConfig()
	if err != nil {
		return nil, err
	}
	schedule, err := loadScheduleConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DBConnectionString: getEnv("DB_CONNECTION_STRING", ""),
		LogLevel:           level,
		Repositories:       splitList(getEnv("REPOSITORIES", "")),
		GitHub:             github,
		Toxicity:           toxicity,
		Metrics:            metrics,
		Schedule:           schedule,
	}, nil
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if c.GitHub == nil || c.GitHub.Token == "" {
		return fmt.Errorf("GITHUB_TOKEN is required")
	}
	if c.Toxicity == nil || c.Toxicity.APIKey == "" {
		return fmt.Errorf("PERSPECTIVE_API_KEY is required")
	}
	if err := c.Toxicity.Validate(); err != nil {
		return err
	}
	if c.Metrics == nil {
		return fmt.Errorf("metrics configuration is missing")
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if c.Schedule != nil && c.Schedule.Interval <= 0 {
		return fmt.Errorf("SCHEDULE_INTERVAL_MINUTES must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value, err := strconv.ParseFloat(getEnv(key, strconv.FormatFloat(defaultValue, 'f', -1, 64)), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getEnvMinutes(key string, defaultValue int) (time.Duration, error) {
	minutes, err := getEnvInt(key, defaultValue)
	if err != nil {
		return 0, err
	}
	return time.Duration(minutes) * time.Minute, nil
}

func splitList(value string) []string {
	var result []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
