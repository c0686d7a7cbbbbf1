// Package engine runs metrics reports for repositories, on demand and on a schedule.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alliefeldman/climatecoachbot/internal/config"
	"github.com/alliefeldman/climatecoachbot/internal/db"
	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
	"github.com/alliefeldman/climatecoachbot/internal/models"
	"github.com/alliefeldman/climatecoachbot/internal/trend"
	"github.com/alliefeldman/climatecoachbot/internal/utils"
	"github.com/alliefeldman/climatecoachbot/internal/window"
)

// ErrNoStore is returned when reports are requested but no store is configured
var ErrNoStore = errors.New("report store not configured")

// SnapshotBuilder computes one snapshot of a repository for one window
type SnapshotBuilder interface {
	Build(ctx context.Context, owner, repo string, period models.Period, offset int, window models.TimeWindow) (*models.MetricsSnapshot, error)
}

// Service produces reports and tracks their runs
type Service struct {
	builder  SnapshotBuilder
	resolver *window.Resolver
	store    db.ReportStore
	config   *config.MetricsConfig
	registry *RunRegistry
	status   *StatusManager
	logger   *logrus.Logger
	now      func() time.Time
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithStore sets the store reports are persisted to
func WithStore(store db.ReportStore) ServiceOption {
	return func(s *Service) {
		s.store = store
	}
}

// WithServiceClock overrides the time stamped on reports and statuses
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new report service
func NewService(builder SnapshotBuilder, resolver *window.Resolver, cfg *config.MetricsConfig, logger *logrus.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		builder:  builder,
		resolver: resolver,
		config:   cfg,
		registry: NewRunRegistry(),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.status = NewStatusManager(s.now)
	return s
}

// RunReport computes the last and current snapshots of owner/repo, their trend,
// and persists the resulting report when a store is configured. Nothing is
// persisted when any stage fails.
func (s *Service) RunReport(ctx context.Context, owner, repo string) (*models.Report, error) {
	var report *models.Report
	err := s.exclusive(ctx, owner, repo, func(ctx context.Context) (string, error) {
		var err error
		report, err = s.buildReport(ctx, owner, repo)
		if err != nil {
			return "", err
		}
		return report.RunID, nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Calculate computes a single snapshot without persisting it
func (s *Service) Calculate(ctx context.Context, owner, repo string, period models.Period, offset int) (*models.MetricsSnapshot, error) {
	w, err := s.resolver.Resolve(period, offset)
	if err != nil {
		return nil, err
	}

	var snapshot *models.MetricsSnapshot
	err = s.exclusive(ctx, owner, repo, func(ctx context.Context) (string, error) {
		var err error
		snapshot, err = s.builder.Build(ctx, owner, repo, period, offset, w)
		if err != nil {
			return "", err
		}
		return snapshot.RunID, nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// exclusive runs fn under the repository's run lock and wall-clock budget,
// recording its outcome in the status manager
func (s *Service) exclusive(ctx context.Context, owner, repo string, fn func(ctx context.Context) (string, error)) error {
	key := utils.FullName(owner, repo)
	logger := s.logger.WithFields(logrus.Fields{
		"owner": owner,
		"repo":  repo,
	})

	release, err := s.registry.Acquire(key)
	if err != nil {
		logger.Warn("Run already in progress")
		return err
	}
	defer release()

	s.status.Start(key)
	started := s.now()

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	runID, err := fn(runCtx)
	if err != nil {
		logger.WithError(err).Error("Run failed")
		s.status.Fail(key, err)
		return err
	}

	s.status.Complete(key, runID)
	logger.WithFields(logrus.Fields{
		"run_id":   runID,
		"duration": s.now().Sub(started).String(),
	}).Info("Run completed")
	return nil
}

func (s *Service) buildReport(ctx context.Context, owner, repo string) (*models.Report, error) {
	period := s.config.Period
	lastWindow, currentWindow, err := s.resolver.ResolvePair(period, s.config.LastOffset, s.config.CurrentOffset)
	if err != nil {
		return nil, apperrors.NewRunError(apperrors.StageAggregate, owner, repo, "", err)
	}

	last, err := s.builder.Build(ctx, owner, repo, period, s.config.LastOffset, lastWindow)
	if err != nil {
		return nil, err
	}
	current, err := s.builder.Build(ctx, owner, repo, period, s.config.CurrentOffset, currentWindow)
	if err != nil {
		return nil, err
	}

	delta, err := trend.Calculate(last, current)
	if err != nil {
		return nil, apperrors.NewRunError(apperrors.StageAggregate, owner, repo, currentWindow.String(), err)
	}

	report := &models.Report{
		RunID:     uuid.NewString(),
		Owner:     owner,
		Repo:      repo,
		Period:    period,
		Last:      last,
		Current:   current,
		Trend:     delta,
		CreatedAt: s.now().UTC(),
	}

	if s.store == nil {
		s.logger.WithFields(logrus.Fields{
			"owner":  owner,
			"repo":   repo,
			"run_id": report.RunID,
		}).Debug("No report store configured, skipping persistence")
		return report, nil
	}

	if err := s.store.SaveReport(ctx, report); err != nil {
		return nil, apperrors.NewRunError(apperrors.StagePersist, owner, repo, currentWindow.String(), err)
	}
	return report, nil
}

// LatestReport returns the most recently persisted report of owner/repo
func (s *Service) LatestReport(ctx context.Context, owner, repo string) (*models.Report, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.GetLatestReport(ctx, owner, repo)
}

// ListReports returns up to limit persisted reports of owner/repo, newest first
func (s *Service) ListReports(ctx context.Context, owner, repo string, limit int) ([]*models.Report, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	reports, err := s.store.ListReports(ctx, owner, repo, limit)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []*models.Report{}
	}
	return reports, nil
}

// GetStatus returns the run status of owner/repo
func (s *Service) GetStatus(owner, repo string) (*models.RunStatus, error) {
	return s.status.GetStatus(utils.FullName(owner, repo))
}

// ListStatuses returns the run status of every repository that ran
func (s *Service) ListStatuses() []*models.RunStatus {
	return s.status.ListStatuses()
}
