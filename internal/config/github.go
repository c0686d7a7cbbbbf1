package config

// GitHubConfig holds GitHub-specific configuration
type GitHubConfig struct {
	Token      string
	APIBaseURL string
	RateLimit  RateLimitConfig
}

// RateLimitConfig holds rate limit configuration
type RateLimitConfig struct {
	// MaxRetries bounds how often a call refused for quota reasons is retried
	MaxRetries int
	// RequestsPerSecond paces calls regardless of quota; zero disables pacing
	RequestsPerSecond float64
}

// DefaultGitHubConfig returns the default GitHub configuration
func DefaultGitHubConfig() *GitHubConfig {
	return &GitHubConfig{
		RateLimit: RateLimitConfig{
			MaxRetries: 3,
		},
	}
}

func loadGitHubConfig() (*GitHubConfig, error) {
	cfg := DefaultGitHubConfig()
	cfg.Token = getEnv("GITHUB_TOKEN", "")
	cfg.APIBaseURL = getEnv("GITHUB_API_URL", "")

	var err error
	if cfg.RateLimit.MaxRetries, err = getEnvInt("GITHUB_MAX_RETRIES", cfg.RateLimit.MaxRetries); err != nil {
		return nil, err
	}
	if cfg.RateLimit.RequestsPerSecond, err = getEnvFloat("GITHUB_QPS", 0); err != nil {
		return nil, err
	}
	return cfg, nil
}
