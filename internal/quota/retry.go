package quota

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
)

// ErrRetriesExhausted is returned when every attempt was rate limited
var ErrRetriesExhausted = errors.New("rate limit retries exhausted")

// RetryConfig holds configuration for the soft quota policy
type RetryConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
	// QPS paces attempts across all callers; zero or less disables pacing
	QPS float64
}

// DefaultRetryConfig returns the defaults for the toxicity scorer
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   8,
		BaseDelay:     time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2.0,
		JitterEnabled: true,
		QPS:           1,
	}
}

// Retrier retries rate limited calls. Any other error is returned at once.
type Retrier struct {
	config  RetryConfig
	limiter *rate.Limiter
	logger  *logrus.Logger
	sleep   func(context.Context, time.Duration) error
	jitter  func(max int64) int64
}

// RetrierOption configures a Retrier
type RetrierOption func(*Retrier)

// WithRetrySleep overrides the sleep function, for tests
func WithRetrySleep(sleep func(context.Context, time.Duration) error) RetrierOption {
	return func(r *Retrier) {
		r.sleep = sleep
	}
}

// NewRetrier creates a new soft quota policy
func NewRetrier(cfg RetryConfig, logger *logrus.Logger, opts ...RetrierOption) *Retrier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffFactor <= 1 {
		cfg.BackoffFactor = 2.0
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.QPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.QPS), 1)
	}

	r := &Retrier{
		config:  cfg,
		limiter: limiter,
		logger:  logger,
		sleep:   sleepContext,
		jitter:  rand.Int63n,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do runs fn until it succeeds, fails with a non rate limit error, or attempts run out
func (r *Retrier) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var rl *apperrors.RateLimitError
		if !errors.As(err, &rl) {
			return err
		}
		lastErr = err

		if attempt == r.config.MaxAttempts-1 {
			break
		}

		delay, ok := rl.RetryDelay()
		if !ok {
			delay = r.backoff(attempt)
		}
		r.logger.WithFields(logrus.Fields{
			"operation": op,
			"attempt":   attempt + 1,
			"retry_in":  delay.String(),
		}).Warn("Rate limited. Backing off")

		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%s: %w after %d attempts: %v", op, ErrRetriesExhausted, r.config.MaxAttempts, lastErr)
}

// backoff computes the delay before the attempt following the given one
func (r *Retrier) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(r.config.BaseDelay) * math.Pow(r.config.BackoffFactor, float64(attempt)))
	if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	if r.config.JitterEnabled && delay >= 10 {
		delay += time.Duration(r.jitter(int64(delay / 10)))
	}
	return delay
}
