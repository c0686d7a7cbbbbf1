package toxicity

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/alliefeldman/climatecoachbot/internal/batch"
	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
	"github.com/alliefeldman/climatecoachbot/internal/models"
)

// DefaultThreshold is the toxicity score at or above which a comment is toxic
const DefaultThreshold = 0.1

// ConversationFetcher loads a full conversation for reporting
type ConversationFetcher interface {
	GetConversation(ctx context.Context, owner, repo string, number int) (models.Conversation, error)
}

// Result is the outcome of one detection pass over one kind's comments
type Result struct {
	ToxicConversations []models.Conversation
	ToxicComments      []models.ToxicComment
	// MaxToxicity is nil when no comment was scored successfully
	MaxToxicity *float64
}

// Detector finds conversations holding at least one toxic comment
type Detector struct {
	scorer    Scorer
	fetcher   ConversationFetcher
	threshold float64
	workers   int
	logger    *logrus.Logger
}

// NewDetector creates a new toxicity detector
func NewDetector(scorer Scorer, fetcher ConversationFetcher, threshold float64, workers int, logger *logrus.Logger) *Detector {
	return &Detector{
		scorer:    scorer,
		fetcher:   fetcher,
		threshold: threshold,
		workers:   workers,
		logger:    logger,
	}
}

type thread struct {
	number   int
	url      string
	kind     models.Kind
	comments []models.Comment
}

type verdict struct {
	toxic *models.ToxicComment
	max   *float64
}

// Detect scores comments, which must already be limited to the window, and
// reports the toxic conversations among their parents.
func (d *Detector) Detect(ctx context.Context, owner, repo string, comments []models.Comment) (*Result, error) {
	threads := groupByParent(comments)
	verdicts := make([]verdict, len(threads))

	err := batch.ForEach(ctx, batch.NewProcessor(d.workers), indexesOf(threads), func(ctx context.Context, i int) error {
		v, err := d.scoreThread(ctx, threads[i])
		if err != nil {
			return err
		}
		verdicts[i] = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &Result{}
	var flagged []int
	for i, v := range verdicts {
		if v.max != nil && (result.MaxToxicity == nil || *v.max > *result.MaxToxicity) {
			m := *v.max
			result.MaxToxicity = &m
		}
		if v.toxic != nil {
			result.ToxicComments = append(result.ToxicComments, *v.toxic)
			flagged = append(flagged, i)
		}
	}

	convos, err := d.materialize(ctx, owner, repo, threads, flagged)
	if err != nil {
		return nil, err
	}
	result.ToxicConversations = convos

	d.logger.WithFields(logrus.Fields{
		"owner":         owner,
		"repo":          repo,
		"conversations": len(threads),
		"toxic":         len(result.ToxicConversations),
	}).Info("Toxicity detection finished")

	return result, nil
}

// scoreThread scores comments in order until one crosses the threshold
func (d *Detector) scoreThread(ctx context.Context, t thread) (verdict, error) {
	var v verdict
	for _, comment := range t.comments {
		if strings.TrimSpace(comment.Body) == "" {
			continue
		}

		score, err := d.scorer.Score(ctx, comment.Body)
		if err != nil {
			if fatal(err) {
				return v, err
			}
			d.logger.WithError(err).WithFields(logrus.Fields{
				"conversation": t.number,
				"comment":      comment.ID,
			}).Warn("Failed to score comment. Skipping it")
			continue
		}
		if score.Toxic == nil {
			continue
		}

		toxic := *score.Toxic
		if v.max == nil || toxic > *v.max {
			v.max = &toxic
		}
		if toxic >= d.threshold {
			v.toxic = &models.ToxicComment{Comment: comment, Toxic: toxic}
			break
		}
	}
	return v, nil
}

// materialize fetches the flagged conversations, deduplicated by id. A failed
// fetch falls back to what the comments already tell about the conversation,
// unless it was cancelled or the credentials were rejected.
func (d *Detector) materialize(ctx context.Context, owner, repo string, threads []thread, flagged []int) ([]models.Conversation, error) {
	convos := make([]models.Conversation, len(flagged))

	err := batch.ForEach(ctx, batch.NewProcessor(d.workers), indexesOf(flagged), func(ctx context.Context, slot int) error {
		t := threads[flagged[slot]]
		conv, err := d.fetcher.GetConversation(ctx, owner, repo, t.number)
		if err != nil {
			if fatal(err) {
				return err
			}
			d.logger.WithError(err).WithField("conversation", t.number).Warn("Failed to fetch toxic conversation. Reporting it by number")
			conv = models.Conversation{Number: t.number, URL: t.url, Kind: t.kind}
		}
		convos[slot] = conv
		return nil
	})
	if err != nil {
		return nil, err
	}

	return dedupConversations(convos), nil
}

// fatal reports errors that would fail every other comment too
func fatal(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		apperrors.IsUnauthorized(err)
}

func groupByParent(comments []models.Comment) []thread {
	byNumber := make(map[int]int)
	var threads []thread
	for _, c := range comments {
		idx, ok := byNumber[c.ParentNumber]
		if !ok {
			idx = len(threads)
			byNumber[c.ParentNumber] = idx
			threads = append(threads, thread{number: c.ParentNumber, url: c.ParentURL, kind: c.Kind})
		}
		threads[idx].comments = append(threads[idx].comments, c)
	}
	for i := range threads {
		sort.SliceStable(threads[i].comments, func(a, b int) bool {
			return threads[i].comments[a].CreatedAt.Before(threads[i].comments[b].CreatedAt)
		})
	}
	return threads
}

func dedupConversations(convos []models.Conversation) []models.Conversation {
	seen := make(map[int64]bool)
	seenNumber := make(map[int]bool)
	result := make([]models.Conversation, 0, len(convos))
	for _, c := range convos {
		if c.ID != 0 {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
		} else {
			if seenNumber[c.Number] {
				continue
			}
			seenNumber[c.Number] = true
		}
		result = append(result, c)
	}
	return result
}

func indexesOf[T any](items []T) []int {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	return idx
}
