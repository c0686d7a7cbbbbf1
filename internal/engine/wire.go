package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/alliefeldman/climatecoachbot/internal/config"
	"github.com/alliefeldman/climatecoachbot/internal/contributors"
	"github.com/alliefeldman/climatecoachbot/internal/db"
	"github.com/alliefeldman/climatecoachbot/internal/github"
	"github.com/alliefeldman/climatecoachbot/internal/metrics"
	"github.com/alliefeldman/climatecoachbot/internal/quota"
	"github.com/alliefeldman/climatecoachbot/internal/toxicity"
	"github.com/alliefeldman/climatecoachbot/internal/window"
)

// NewFromConfig assembles the GitHub client, the governed toxicity scorer,
// the classifier, the detector and the aggregator into a Service. store may
// be nil, in which case reports are not persisted.
func NewFromConfig(cfg *config.Config, store db.ReportStore, logger *logrus.Logger) (*Service, error) {
	ghOpts := []github.ClientOption{
		github.WithMaxRetries(cfg.GitHub.RateLimit.MaxRetries),
		github.WithQuotaOptions(quota.WithPacing(cfg.GitHub.RateLimit.RequestsPerSecond, 1)),
	}
	if cfg.GitHub.APIBaseURL != "" {
		ghOpts = append(ghOpts, github.WithBaseURL(cfg.GitHub.APIBaseURL))
	}
	ghClient, err := github.NewClient(cfg.GitHub.Token, logger, ghOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	retryCfg := quota.DefaultRetryConfig()
	retryCfg.MaxAttempts = cfg.Toxicity.Retry.MaxAttempts
	retryCfg.BaseDelay = cfg.Toxicity.Retry.BaseDelay
	retryCfg.MaxDelay = cfg.Toxicity.Retry.MaxDelay
	retryCfg.QPS = cfg.Toxicity.Retry.QPS

	perspective := toxicity.NewPerspectiveClient(cfg.Toxicity.APIKey, logger, toxicity.WithEndpoint(cfg.Toxicity.APIURL))
	scorer := toxicity.NewGovernedScorer(perspective, quota.NewRetrier(retryCfg, logger), logger)

	bots, err := metrics.LoadBotList(cfg.Metrics.BotListFile)
	if err != nil {
		return nil, err
	}

	aggregator := metrics.NewAggregator(
		ghClient,
		contributors.NewClassifier(ghClient, cfg.Metrics.Workers, logger),
		toxicity.NewDetector(scorer, ghClient, cfg.Toxicity.Threshold, cfg.Metrics.Workers, logger),
		bots,
		logger,
	)

	resolver := window.NewResolver(window.WithMidnightAlignment(cfg.Metrics.AlignWindows))

	var opts []ServiceOption
	if store != nil {
		opts = append(opts, WithStore(store))
	}
	return NewService(aggregator, resolver, cfg.Metrics, logger, opts...), nil
}
