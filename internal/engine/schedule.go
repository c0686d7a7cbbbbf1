package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alliefeldman/climatecoachbot/internal/batch"
	"github.com/alliefeldman/climatecoachbot/internal/utils"
)

// StartSchedule runs a report for every repository immediately and then once
// per interval until ctx is cancelled. It blocks.
func (s *Service) StartSchedule(ctx context.Context, repositories []string, interval time.Duration) {
	logger := s.logger.WithFields(logrus.Fields{
		"repositories": len(repositories),
		"interval":     interval.String(),
	})
	logger.Info("Starting scheduled collection")

	s.RunAll(ctx, repositories)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduled collection stopped")
			return
		case <-ticker.C:
			s.RunAll(ctx, repositories)
		}
	}
}

// RunAll runs a report for each repository reference, at most Workers at a
// time. A failing repository is logged and does not stop the others. It
// returns the number of failed repositories.
func (s *Service) RunAll(ctx context.Context, repositories []string) int {
	var failed int64
	processor := batch.NewProcessor(s.config.Workers)

	err := batch.ForEach(ctx, processor, repositories, func(ctx context.Context, ref string) error {
		logger := s.logger.WithField("repository", ref)

		owner, repo, err := utils.ParseRepository(ref)
		if err != nil {
			logger.WithError(err).Warn("Skipping invalid repository reference")
			atomic.AddInt64(&failed, 1)
			return nil
		}

		if _, err := s.RunReport(ctx, owner, repo); err != nil {
			logger.WithError(err).Warn("Scheduled run failed")
			atomic.AddInt64(&failed, 1)
		}
		return nil
	})
	if err != nil {
		s.logger.WithError(err).Warn("Collection round interrupted")
	}

	progress := processor.Progress()
	s.logger.WithFields(logrus.Fields{
		"total":  progress.Total,
		"failed": failed,
	}).Info("Collection round finished")
	return int(failed)
}
