package toxicity

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/alliefeldman/climatecoachbot/internal/models"
	"github.com/alliefeldman/climatecoachbot/internal/quota"
)

// GovernedScorer applies the soft quota policy to a Scorer. When retries run
// out the comment gets a null score instead of an error.
type GovernedScorer struct {
	scorer  Scorer
	retrier *quota.Retrier
	logger  *logrus.Logger
}

// NewGovernedScorer creates a new governed scorer
func NewGovernedScorer(scorer Scorer, retrier *quota.Retrier, logger *logrus.Logger) *GovernedScorer {
	return &GovernedScorer{
		scorer:  scorer,
		retrier: retrier,
		logger:  logger,
	}
}

// Score scores text, retrying rate limited calls
func (g *GovernedScorer) Score(ctx context.Context, text string) (models.ToxicityScore, error) {
	var score models.ToxicityScore
	err := g.retrier.Do(ctx, "score comment", func(ctx context.Context) error {
		var err error
		score, err = g.scorer.Score(ctx, text)
		return err
	})
	if errors.Is(err, quota.ErrRetriesExhausted) {
		g.logger.WithError(err).Warn("Toxicity scorer stayed rate limited. Recording a null score")
		return models.ToxicityScore{}, nil
	}
	if err != nil {
		return models.ToxicityScore{}, err
	}
	return score, nil
}
