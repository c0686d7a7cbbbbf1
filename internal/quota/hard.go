// Package quota mediates every outbound call to the two rate limited APIs.
//
// HardQuota guards the repository host: before each call it checks the
// remaining quota and, when exhausted, blocks until the disclosed reset time.
// Retrier guards the toxicity scorer: it retries rate limited calls with the
// server suggested delay or exponential backoff with jitter.
//
// One instance of each is shared by every worker of a run so quota accounting
// stays correct under fan-out.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/alliefeldman/climatecoachbot/internal/models"
)

// minResetWait is slept when the host still reports an exhausted quota after its reset time
const minResetWait = time.Second

// RateLimitSource discloses the current quota. Implementations must not
// route this call through the HardQuota that queries them.
type RateLimitSource interface {
	GetRateLimit(ctx context.Context) (models.RateLimit, error)
}

// HardQuota blocks callers while the host quota is exhausted
type HardQuota struct {
	source  RateLimitSource
	limiter *rate.Limiter
	logger  *logrus.Logger

	mu    sync.Mutex
	state models.RateLimit
	known bool

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// HardQuotaOption configures a HardQuota
type HardQuotaOption func(*HardQuota)

// WithPacing limits outbound calls to rps per second regardless of remaining quota
func WithPacing(rps float64, burst int) HardQuotaOption {
	return func(q *HardQuota) {
		if rps > 0 {
			q.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithHardQuotaClock overrides the clock and sleep function, for tests
func WithHardQuotaClock(now func() time.Time, sleep func(context.Context, time.Duration) error) HardQuotaOption {
	return func(q *HardQuota) {
		q.now = now
		q.sleep = sleep
	}
}

// NewHardQuota creates a new hard quota governor over source
func NewHardQuota(source RateLimitSource, logger *logrus.Logger, opts ...HardQuotaOption) *HardQuota {
	q := &HardQuota{
		source:  source,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  logger,
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Acquire blocks until one call may be made and reserves quota for it
func (q *HardQuota) Acquire(ctx context.Context) error {
	if err := q.limiter.Wait(ctx); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if !q.known || (q.state.Remaining <= 0 && !q.now().Before(q.state.ResetAt)) {
			rl, err := q.source.GetRateLimit(ctx)
			if err != nil {
				return fmt.Errorf("failed to check rate limit: %w", err)
			}
			q.state = rl
			q.known = true
		}

		if q.state.Remaining > 0 {
			q.state.Remaining--
			return nil
		}

		wait := q.state.ResetAt.Sub(q.now())
		if wait <= 0 {
			wait = minResetWait
		}
		q.logger.WithFields(logrus.Fields{
			"reset_at": q.state.ResetAt,
			"wait":     wait.String(),
		}).Warn("Repository host quota exhausted. Waiting for reset")

		if err := q.sleep(ctx, wait); err != nil {
			return err
		}
		q.known = false
	}
}

// Observe records the quota reported alongside a response
func (q *HardQuota) Observe(rl models.RateLimit) {
	if rl.Limit == 0 && rl.ResetAt.IsZero() {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.state = rl
	q.known = true
}

// Exhausted marks the quota as spent until resetAt, after the host refused a call
func (q *HardQuota) Exhausted(resetAt time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.state.Remaining = 0
	q.state.ResetAt = resetAt
	q.known = true
}

// Snapshot returns the last known quota state
func (q *HardQuota) Snapshot() (models.RateLimit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state, q.known
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
