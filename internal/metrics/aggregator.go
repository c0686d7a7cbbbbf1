// Package metrics builds the community health snapshot of a repository for one window.
package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/alliefeldman/climatecoachbot/internal/contributors"
	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
	"github.com/alliefeldman/climatecoachbot/internal/models"
	"github.com/alliefeldman/climatecoachbot/internal/toxicity"
)

// HistoryProvider lists a repository's conversations and comments since a time.
// Listings are complete or fail.
type HistoryProvider interface {
	ListConversations(ctx context.Context, owner, repo string, since time.Time) (issues, pullRequests []models.Conversation, err error)
	ListIssueComments(ctx context.Context, owner, repo string, since time.Time) ([]models.Comment, error)
	ListReviewComments(ctx context.Context, owner, repo string, since time.Time) ([]models.Comment, error)
}

// AuthorClassifier splits authors into new and recurring
type AuthorClassifier interface {
	Classify(ctx context.Context, owner, repo string, window models.TimeWindow, authors []models.Author, pool *contributors.TenurePool) (*contributors.Classification, error)
}

// ToxicityDetector finds toxic conversations among in-window comments
type ToxicityDetector interface {
	Detect(ctx context.Context, owner, repo string, comments []models.Comment) (*toxicity.Result, error)
}

// Aggregator builds MetricsSnapshots
type Aggregator struct {
	provider   HistoryProvider
	classifier AuthorClassifier
	detector   ToxicityDetector
	bots       *BotList
	logger     *logrus.Logger
	now        func() time.Time
}

// AggregatorOption configures an Aggregator
type AggregatorOption func(*Aggregator)

// WithClock overrides the time stamped on snapshots
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		a.now = now
	}
}

// NewAggregator creates a new metrics aggregator
func NewAggregator(provider HistoryProvider, classifier AuthorClassifier, detector ToxicityDetector, bots *BotList, logger *logrus.Logger, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		provider:   provider,
		classifier: classifier,
		detector:   detector,
		bots:       bots,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type history struct {
	issues         []models.Conversation
	pullRequests   []models.Conversation
	issueComments  []models.Comment
	reviewComments []models.Comment
}

// Build computes the snapshot of owner/repo for window. Any run-fatal failure
// is returned as *errors.RunError and no snapshot is produced.
func (a *Aggregator) Build(ctx context.Context, owner, repo string, period models.Period, offset int, window models.TimeWindow) (*models.MetricsSnapshot, error) {
	logger := a.logger.WithFields(logrus.Fields{
		"owner": owner,
		"repo":  repo,
		"since": window.Since,
		"end":   window.End,
	})
	fail := func(stage apperrors.Stage, err error) error {
		logger.WithError(err).WithField("stage", stage).Error("Metrics run failed")
		return apperrors.NewRunError(stage, owner, repo, window.String(), err)
	}

	if !window.Since.Before(window.End) {
		return nil, fail(apperrors.StageAggregate, apperrors.NewValidationError("window start must precede its end", nil))
	}

	logger.Info("Starting metrics run")

	h, err := a.fetch(ctx, owner, repo, window.Since)
	if err != nil {
		return nil, fail(apperrors.StageFetch, err)
	}

	snapshot := &models.MetricsSnapshot{
		RunID:  uuid.NewString(),
		Owner:  owner,
		Repo:   repo,
		Period: period,
		Offset: offset,
		Window: window,
	}

	issueMetrics, issueAuthors := a.summarize(h.issues, window)
	prMetrics, prAuthors := a.summarize(h.pullRequests, window)

	pool := contributors.NewTenurePool()
	if err := a.applyAuthors(ctx, owner, repo, window, &issueMetrics, issueAuthors, pool); err != nil {
		return nil, fail(apperrors.StageClassify, err)
	}
	if err := a.applyAuthors(ctx, owner, repo, window, &prMetrics, prAuthors, pool); err != nil {
		return nil, fail(apperrors.StageClassify, err)
	}

	if err := a.applyToxicity(ctx, owner, repo, &issueMetrics, commentsInWindow(h.issueComments, window, a.bots)); err != nil {
		return nil, fail(apperrors.StageDetect, err)
	}
	if err := a.applyToxicity(ctx, owner, repo, &prMetrics, commentsInWindow(h.reviewComments, window, a.bots)); err != nil {
		return nil, fail(apperrors.StageDetect, err)
	}

	snapshot.Issues = issueMetrics
	snapshot.PullRequests = prMetrics
	snapshot.AvgTenure = pool.Average()
	snapshot.ComputedAt = a.now().UTC()

	logger.WithFields(logrus.Fields{
		"run_id":        snapshot.RunID,
		"issues_opened": issueMetrics.NumOpened,
		"prs_opened":    prMetrics.NumOpened,
	}).Info("Metrics run completed")

	return snapshot, nil
}

// fetch runs the three listings concurrently. Issues and pull requests share
// one listing. The first failure cancels the rest.
func (a *Aggregator) fetch(ctx context.Context, owner, repo string, since time.Time) (*history, error) {
	h := &history{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		h.issues, h.pullRequests, err = a.provider.ListConversations(gctx, owner, repo, since)
		return err
	})
	g.Go(func() error {
		var err error
		h.issueComments, err = a.provider.ListIssueComments(gctx, owner, repo, since)
		return err
	})
	g.Go(func() error {
		var err error
		h.reviewComments, err = a.provider.ListReviewComments(gctx, owner, repo, since)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return h, nil
}

// summarize computes the count statistics of one kind and returns its unique authors
func (a *Aggregator) summarize(convos []models.Conversation, window models.TimeWindow) (models.KindMetrics, []models.Author) {
	var m models.KindMetrics
	applyClosed(&m, closedInWindow(convos, window))

	opened := openedInWindow(convos, window)
	applyOpened(&m, opened)

	return m, uniqueAuthors(opened, a.bots)
}

func (a *Aggregator) applyAuthors(ctx context.Context, owner, repo string, window models.TimeWindow, m *models.KindMetrics, authors []models.Author, pool *contributors.TenurePool) error {
	c, err := a.classifier.Classify(ctx, owner, repo, window, authors, pool)
	if err != nil {
		return err
	}

	m.UniqueAuthors = emptyIfNil(without(authors, c.Unclassified))
	m.NewAuthors = emptyIfNil(c.New)
	m.RecurAuthors = emptyIfNil(c.Recurring)
	m.UnclassifiedAuthors = c.Unclassified
	m.NumUniqueAuthors = len(m.UniqueAuthors)
	m.NumNewAuthors = len(m.NewAuthors)
	m.NumRecurAuthors = len(m.RecurAuthors)
	return nil
}

func (a *Aggregator) applyToxicity(ctx context.Context, owner, repo string, m *models.KindMetrics, comments []models.Comment) error {
	r, err := a.detector.Detect(ctx, owner, repo, comments)
	if err != nil {
		return err
	}

	m.ToxicConversations = r.ToxicConversations
	if m.ToxicConversations == nil {
		m.ToxicConversations = []models.Conversation{}
	}
	m.ToxicComments = r.ToxicComments
	if m.ToxicComments == nil {
		m.ToxicComments = []models.ToxicComment{}
	}
	m.NumToxicConversations = len(m.ToxicConversations)
	m.NumToxicComments = len(m.ToxicComments)
	m.MaxToxic = r.MaxToxicity
	return nil
}

func emptyIfNil(authors []models.Author) []models.Author {
	if authors == nil {
		return []models.Author{}
	}
	return authors
}
