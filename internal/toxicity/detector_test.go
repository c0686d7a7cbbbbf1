package toxicity

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
	"github.com/alliefeldman/climatecoachbot/internal/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func score(v float64) *float64 {
	return &v
}

// fakeScorer returns a fixed score per body and counts calls
type fakeScorer struct {
	mu     sync.Mutex
	scores map[string]*float64
	errs   map[string]error
	calls  []string
}

func (f *fakeScorer) Score(ctx context.Context, text string) (models.ToxicityScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if err := f.errs[text]; err != nil {
		return models.ToxicityScore{}, err
	}
	return models.ToxicityScore{Toxic: f.scores[text]}, nil
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) GetConversation(ctx context.Context, owner, repo string, number int) (models.Conversation, error) {
	args := m.Called(ctx, owner, repo, number)
	return args.Get(0).(models.Conversation), args.Error(1)
}

func comment(id int64, parent int, body string, minute int) models.Comment {
	return models.Comment{
		ID:           id,
		Body:         body,
		ParentNumber: parent,
		ParentURL:    "https://github.com/o/r/issues/" + string(rune('0'+parent)),
		Kind:         models.KindIssue,
		CreatedAt:    time.Date(2024, 1, 1, 0, minute, 0, 0, time.UTC),
	}
}

func TestDetector_ShortCircuitsAfterFirstToxicComment(t *testing.T) {
	scorer := &fakeScorer{scores: map[string]*float64{
		"fine":  score(0.05),
		"rude":  score(0.5),
		"worse": score(0.9),
	}}
	fetcher := new(MockFetcher)
	fetcher.On("GetConversation", mock.Anything, "o", "r", 1).
		Return(models.Conversation{ID: 100, Number: 1, Title: "Thread"}, nil)

	d := NewDetector(scorer, fetcher, 0.1, 2, quietLogger())
	result, err := d.Detect(context.Background(), "o", "r", []models.Comment{
		comment(1, 1, "fine", 1),
		comment(2, 1, "rude", 2),
		comment(3, 1, "worse", 3),
	})
	require.NoError(t, err)

	assert.Len(t, scorer.calls, 2)
	require.Len(t, result.ToxicConversations, 1)
	assert.Equal(t, "Thread", result.ToxicConversations[0].Title)
	require.Len(t, result.ToxicComments, 1)
	assert.Equal(t, int64(2), result.ToxicComments[0].ID)
	assert.Equal(t, 0.5, result.ToxicComments[0].Toxic)
	require.NotNil(t, result.MaxToxicity)
	assert.Equal(t, 0.5, *result.MaxToxicity)
	fetcher.AssertExpectations(t)
}

func TestDetector_ScoresInCreationOrder(t *testing.T) {
	scorer := &fakeScorer{scores: map[string]*float64{
		"early": score(0.8),
		"late":  score(0.01),
	}}
	fetcher := new(MockFetcher)
	fetcher.On("GetConversation", mock.Anything, "o", "r", 4).Return(models.Conversation{ID: 4, Number: 4}, nil)

	d := NewDetector(scorer, fetcher, 0.1, 1, quietLogger())
	_, err := d.Detect(context.Background(), "o", "r", []models.Comment{
		comment(2, 4, "late", 10),
		comment(1, 4, "early", 1),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"early"}, scorer.calls)
}

func TestDetector_MaxIgnoresNullScores(t *testing.T) {
	scorer := &fakeScorer{
		scores: map[string]*float64{
			"calm":    score(0.03),
			"unknown": nil,
		},
		errs: map[string]error{"broken": errors.New("scorer unavailable")},
	}
	fetcher := new(MockFetcher)

	d := NewDetector(scorer, fetcher, 0.1, 2, quietLogger())
	result, err := d.Detect(context.Background(), "o", "r", []models.Comment{
		comment(1, 1, "calm", 1),
		comment(2, 1, "unknown", 2),
		comment(3, 2, "broken", 3),
	})
	require.NoError(t, err)

	assert.Empty(t, result.ToxicConversations)
	assert.Empty(t, result.ToxicComments)
	require.NotNil(t, result.MaxToxicity)
	assert.Equal(t, 0.03, *result.MaxToxicity)
	fetcher.AssertNotCalled(t, "GetConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDetector_NothingScoredLeavesMaxNull(t *testing.T) {
	scorer := &fakeScorer{scores: map[string]*float64{"x": nil}}
	d := NewDetector(scorer, new(MockFetcher), 0.1, 2, quietLogger())

	result, err := d.Detect(context.Background(), "o", "r", []models.Comment{comment(1, 1, "x", 1)})
	require.NoError(t, err)
	assert.Nil(t, result.MaxToxicity)

	result, err = d.Detect(context.Background(), "o", "r", nil)
	require.NoError(t, err)
	assert.Nil(t, result.MaxToxicity)
	assert.Empty(t, result.ToxicConversations)
}

func TestDetector_SkipsEmptyBodies(t *testing.T) {
	scorer := &fakeScorer{scores: map[string]*float64{}}
	d := NewDetector(scorer, new(MockFetcher), 0.1, 2, quietLogger())

	_, err := d.Detect(context.Background(), "o", "r", []models.Comment{comment(1, 1, "   ", 1)})
	require.NoError(t, err)
	assert.Empty(t, scorer.calls)
}

func TestDetector_MaterializationFallback(t *testing.T) {
	scorer := &fakeScorer{scores: map[string]*float64{"rude": score(0.7)}}
	fetcher := new(MockFetcher)
	fetcher.On("GetConversation", mock.Anything, "o", "r", 3).
		Return(models.Conversation{}, errors.New("not reachable"))

	d := NewDetector(scorer, fetcher, 0.1, 2, quietLogger())
	c := comment(1, 3, "rude", 1)
	result, err := d.Detect(context.Background(), "o", "r", []models.Comment{c})
	require.NoError(t, err)

	require.Len(t, result.ToxicConversations, 1)
	assert.Equal(t, 3, result.ToxicConversations[0].Number)
	assert.Equal(t, c.ParentURL, result.ToxicConversations[0].URL)
	assert.Equal(t, models.KindIssue, result.ToxicConversations[0].Kind)
}

func TestDetector_DeduplicatesConversations(t *testing.T) {
	scorer := &fakeScorer{scores: map[string]*float64{"a": score(0.9), "b": score(0.9)}}
	fetcher := new(MockFetcher)
	fetcher.On("GetConversation", mock.Anything, "o", "r", mock.Anything).
		Return(models.Conversation{ID: 77, Number: 7}, nil)

	d := NewDetector(scorer, fetcher, 0.1, 2, quietLogger())
	result, err := d.Detect(context.Background(), "o", "r", []models.Comment{
		comment(1, 1, "a", 1),
		comment(2, 2, "b", 2),
	})
	require.NoError(t, err)
	assert.Len(t, result.ToxicConversations, 1)
}

func TestDetector_CancelledContextAborts(t *testing.T) {
	scorer := &fakeScorer{errs: map[string]error{"x": context.Canceled}}
	d := NewDetector(scorer, new(MockFetcher), 0.1, 1, quietLogger())

	_, err := d.Detect(context.Background(), "o", "r", []models.Comment{comment(1, 1, "x", 1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetector_RejectedCredentialsAbort(t *testing.T) {
	denied := apperrors.NewUnauthorizedError("scorer rejected the api key", nil)
	scorer := &fakeScorer{errs: map[string]error{"a": denied, "b": denied, "c": denied}}
	fetcher := new(MockFetcher)
	d := NewDetector(scorer, fetcher, 0.1, 1, quietLogger())

	result, err := d.Detect(context.Background(), "o", "r", []models.Comment{
		comment(1, 1, "a", 1),
		comment(2, 2, "b", 2),
		comment(3, 3, "c", 3),
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsUnauthorized(err))
	fetcher.AssertNotCalled(t, "GetConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDetector_RejectedCredentialsWhileMaterializing(t *testing.T) {
	scorer := &fakeScorer{scores: map[string]*float64{"rude": score(0.7)}}
	fetcher := new(MockFetcher)
	fetcher.On("GetConversation", mock.Anything, "o", "r", 3).
		Return(models.Conversation{}, apperrors.NewUnauthorizedError("bad credentials", nil))

	d := NewDetector(scorer, fetcher, 0.1, 2, quietLogger())
	_, err := d.Detect(context.Background(), "o", "r", []models.Comment{comment(1, 3, "rude", 1)})
	assert.True(t, apperrors.IsUnauthorized(err))
}
