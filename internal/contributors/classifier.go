// Package contributors classifies the authors of a window as new or recurring
// from their earliest conversation in the whole repository.
package contributors

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/alliefeldman/climatecoachbot/internal/batch"
	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
	"github.com/alliefeldman/climatecoachbot/internal/models"
)

// HistorySource returns the earliest issue or pull request login opened in
// the repository, or nil when there is none.
type HistorySource interface {
	FirstConversation(ctx context.Context, owner, repo, login string) (*models.Conversation, error)
}

// Classification splits a set of unique authors. Every input author lands in
// exactly one of New, Recurring or Unclassified.
type Classification struct {
	New          []models.Author
	Recurring    []models.Author
	Unclassified []models.Author
	Details      []models.AuthorClassification
}

// Classifier decides new versus recurring for each author
type Classifier struct {
	source  HistorySource
	workers int
	logger  *logrus.Logger
}

// NewClassifier creates a new contributor classifier
func NewClassifier(source HistorySource, workers int, logger *logrus.Logger) *Classifier {
	return &Classifier{
		source:  source,
		workers: workers,
		logger:  logger,
	}
}

// Classify classifies authors, which must be unique and bot filtered, against
// window. Tenures are added to pool. An author whose history cannot be fetched
// is listed as unclassified and does not fail the call, unless the fetch was
// cancelled or the credentials were rejected.
func (c *Classifier) Classify(ctx context.Context, owner, repo string, window models.TimeWindow, authors []models.Author, pool *TenurePool) (*Classification, error) {
	type outcome struct {
		classification *models.AuthorClassification
	}
	outcomes := make([]outcome, len(authors))

	err := batch.ForEach(ctx, batch.NewProcessor(c.workers), indexesOf(authors), func(ctx context.Context, i int) error {
		author := authors[i]
		fc, err := pool.lookup(ctx, author.Login, func(ctx context.Context) (firstContribution, error) {
			conv, err := c.source.FirstConversation(ctx, owner, repo, author.Login)
			if err != nil {
				return firstContribution{}, err
			}
			if conv == nil {
				return firstContribution{}, nil
			}
			return firstContribution{at: conv.CreatedAt, found: true}, nil
		})
		if err != nil {
			if fatal(err) {
				return err
			}
			c.logger.WithError(err).WithFields(logrus.Fields{
				"owner": owner,
				"repo":  repo,
				"login": author.Login,
			}).Warn("Failed to fetch author history. Leaving author unclassified")
			return nil
		}

		ac := classify(author, fc, window)
		pool.record(author.Login, ac.TenureMonths)

		outcomes[i] = outcome{classification: &ac}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &Classification{}
	for i, o := range outcomes {
		if o.classification == nil {
			result.Unclassified = append(result.Unclassified, authors[i])
			continue
		}
		result.Details = append(result.Details, *o.classification)
		if o.classification.IsNew {
			result.New = append(result.New, authors[i])
		} else {
			result.Recurring = append(result.Recurring, authors[i])
		}
	}

	c.logger.WithFields(logrus.Fields{
		"owner":        owner,
		"repo":         repo,
		"new":          len(result.New),
		"recurring":    len(result.Recurring),
		"unclassified": len(result.Unclassified),
	}).Debug("Classified authors")

	return result, nil
}

// classify applies the window rule to one author's first contribution.
// No history at all counts as new with zero tenure.
func classify(author models.Author, fc firstContribution, window models.TimeWindow) models.AuthorClassification {
	if !fc.found {
		return models.AuthorClassification{Author: author, IsNew: true}
	}
	return models.AuthorClassification{
		Author:       author,
		TenureMonths: MonthsBetween(fc.at, window.End),
		IsNew:        !fc.at.Before(window.Since),
	}
}

// fatal reports errors that no other author would escape either
func fatal(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		apperrors.IsUnauthorized(err)
}

func indexesOf[T any](items []T) []int {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	return idx
}
