package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v62/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
	"github.com/alliefeldman/climatecoachbot/internal/models"
	"github.com/alliefeldman/climatecoachbot/internal/quota"
)

const perPage = 100

// secondaryRateLimitWait is how long to back off from a secondary rate limit
// that names no retry time
const secondaryRateLimitWait = time.Minute

// Client is the repository history provider backed by the GitHub REST API.
// Every call except GetRateLimit passes through one shared HardQuota.
type Client struct {
	client     *gh.Client
	logger     *logrus.Logger
	quota      *quota.HardQuota
	maxRetries int

	baseURL   string
	quotaOpts []quota.HardQuotaOption
}

// ClientOption allows configuring the GitHub client
type ClientOption func(*Client)

// WithMaxRetries sets how many times a call refused for quota reasons is retried
func WithMaxRetries(maxRetries int) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
	}
}

// WithBaseURL points the client at a GitHub Enterprise or test server
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithQuotaOptions configures the hard quota governor owned by the client
func WithQuotaOptions(opts ...quota.HardQuotaOption) ClientOption {
	return func(c *Client) {
		c.quotaOpts = append(c.quotaOpts, opts...)
	}
}

// NewClient creates a new GitHub client with the given token and options
func NewClient(token string, logger *logrus.Logger, opts ...ClientOption) (*Client, error) {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = 120 * time.Second

	c := &Client{
		client:     gh.NewClient(httpClient),
		logger:     logger,
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(c.baseURL, "/") + "/")
		if err != nil {
			return nil, apperrors.NewValidationError("invalid GitHub API URL", err)
		}
		c.client.BaseURL = u
	}

	c.quota = quota.NewHardQuota(c, logger, c.quotaOpts...)
	return c, nil
}

// Quota returns the hard quota governor shared by every call of this client
func (c *Client) Quota() *quota.HardQuota {
	return c.quota
}

// GetRateLimit returns the core quota. It does not consume quota and is not governed.
func (c *Client) GetRateLimit(ctx context.Context) (models.RateLimit, error) {
	limits, _, err := c.client.RateLimit.Get(ctx)
	if err != nil {
		return models.RateLimit{}, mapError(err)
	}
	core := limits.GetCore()
	if core == nil {
		return models.RateLimit{}, NewGitHubError(0, "rate limit response without core quota", nil)
	}
	return models.RateLimit{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		ResetAt:   core.Reset.Time,
	}, nil
}

// call runs fn under the hard quota. Quota refusals mark the governor
// exhausted and are retried up to maxRetries times; any other failure is returned.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) (*gh.Response, error)) (*gh.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.quota.Acquire(ctx); err != nil {
			return nil, err
		}

		resp, err := fn(ctx)
		if resp != nil {
			c.quota.Observe(models.RateLimit{
				Limit:     resp.Rate.Limit,
				Remaining: resp.Rate.Remaining,
				ResetAt:   resp.Rate.Reset.Time,
			})
		}
		if err == nil {
			return resp, nil
		}

		mapped := mapError(err)
		var rl *apperrors.RateLimitError
		if !errors.As(mapped, &rl) {
			return nil, mapped
		}
		lastErr = mapped

		reset := rl.ResetTime
		if delay, ok := rl.RetryDelay(); ok {
			reset = time.Now().Add(delay)
		} else if reset.IsZero() {
			// secondary limit without Retry-After
			reset = time.Now().Add(secondaryRateLimitWait)
		}
		c.quota.Exhausted(reset)

		c.logger.WithFields(logrus.Fields{
			"operation": op,
			"attempt":   attempt + 1,
			"reset_at":  reset,
		}).Warn("GitHub refused the request for quota reasons")
	}

	return nil, fmt.Errorf("%s: max retries exceeded: %w", op, lastErr)
}

func validateRepo(owner, repo string) error {
	if owner == "" {
		return apperrors.NewValidationError("owner cannot be empty", nil)
	}
	if repo == "" {
		return apperrors.NewValidationError("repository name cannot be empty", nil)
	}
	return nil
}
