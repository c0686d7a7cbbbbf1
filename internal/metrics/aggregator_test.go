package metrics

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alliefeldman/climatecoachbot/internal/contributors"
	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
	"github.com/alliefeldman/climatecoachbot/internal/models"
	"github.com/alliefeldman/climatecoachbot/internal/toxicity"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func at(days float64) time.Time {
	return day0.Add(time.Duration(days * 24 * float64(time.Hour)))
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// MockProvider is a mock implementation of HistoryProvider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) ListConversations(ctx context.Context, owner, repo string, since time.Time) ([]models.Conversation, []models.Conversation, error) {
	args := m.Called(ctx, owner, repo, since)
	return args.Get(0).([]models.Conversation), args.Get(1).([]models.Conversation), args.Error(2)
}

func (m *MockProvider) ListIssueComments(ctx context.Context, owner, repo string, since time.Time) ([]models.Comment, error) {
	args := m.Called(ctx, owner, repo, since)
	return args.Get(0).([]models.Comment), args.Error(1)
}

func (m *MockProvider) ListReviewComments(ctx context.Context, owner, repo string, since time.Time) ([]models.Comment, error) {
	args := m.Called(ctx, owner, repo, since)
	return args.Get(0).([]models.Comment), args.Error(1)
}

// fakeHistory returns fixed first contributions and fails for logins in errs
type fakeHistory struct {
	mu    sync.Mutex
	first map[string]time.Time
	errs  map[string]error
	calls []string
}

func (h *fakeHistory) FirstConversation(ctx context.Context, owner, repo, login string) (*models.Conversation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, login)
	if err := h.errs[login]; err != nil {
		return nil, err
	}
	if t, ok := h.first[login]; ok {
		return &models.Conversation{CreatedAt: t}, nil
	}
	return nil, nil
}

type scorer map[string]float64

func (s scorer) Score(ctx context.Context, text string) (models.ToxicityScore, error) {
	v, ok := s[text]
	if !ok {
		return models.ToxicityScore{}, nil
	}
	return models.ToxicityScore{Toxic: &v}, nil
}

// deniedScorer rejects every call the way the scorer does for a bad api key
type deniedScorer struct{}

func (deniedScorer) Score(ctx context.Context, text string) (models.ToxicityScore, error) {
	return models.ToxicityScore{}, apperrors.NewUnauthorizedError("api key rejected", nil)
}

type fetcher struct{}

func (fetcher) GetConversation(ctx context.Context, owner, repo string, number int) (models.Conversation, error) {
	return models.Conversation{ID: int64(number) * 10, Number: number, Title: "toxic thread"}, nil
}

func conv(number int, login string, created time.Time, comments int) models.Conversation {
	return models.Conversation{
		ID:           int64(number),
		Number:       number,
		State:        models.StateOpen,
		CreatedAt:    created,
		CommentCount: comments,
		Author:       models.Author{Login: login},
	}
}

func closedConv(number int, login string, created, closed time.Time, comments int) models.Conversation {
	c := conv(number, login, created, comments)
	c.State = models.StateClosed
	c.ClosedAt = &closed
	return c
}

func newAggregator(p HistoryProvider, h *fakeHistory, s toxicity.Scorer) *Aggregator {
	logger := quietLogger()
	return NewAggregator(
		p,
		contributors.NewClassifier(h, 2, logger),
		toxicity.NewDetector(s, fetcher{}, toxicity.DefaultThreshold, 2, logger),
		NewBotList(DefaultBots...),
		logger,
		WithClock(func() time.Time { return at(8) }),
	)
}

func testWindow() models.TimeWindow {
	return models.TimeWindow{Since: at(1), End: at(8)}
}

func setupProvider(issues, prs []models.Conversation, issueComments, reviewComments []models.Comment) *MockProvider {
	p := new(MockProvider)
	p.On("ListConversations", mock.Anything, "o", "r", at(1)).Return(issues, prs, nil).Once()
	p.On("ListIssueComments", mock.Anything, "o", "r", at(1)).Return(issueComments, nil)
	p.On("ListReviewComments", mock.Anything, "o", "r", at(1)).Return(reviewComments, nil)
	return p
}

func TestAggregator_EndToEndScenario(t *testing.T) {
	issues := []models.Conversation{
		conv(1, "alice", at(2), 0),
		conv(2, "bob", at(3), 0),
		conv(3, "alice", at(4), 2),
		closedConv(4, "carol", at(0), at(5), 4),
	}
	p := setupProvider(issues, []models.Conversation{}, []models.Comment{}, []models.Comment{})
	h := &fakeHistory{first: map[string]time.Time{
		"alice": at(-60),
		"bob":   at(3),
	}}

	snap, err := newAggregator(p, h, scorer{}).Build(context.Background(), "o", "r", models.PeriodWeek, 0, testWindow())
	require.NoError(t, err)

	m := snap.Issues
	assert.Equal(t, 3, m.NumOpened)
	assert.Equal(t, 1, m.NumClosed)
	assert.InDelta(t, 5.0, m.AvgCloseTime, 1e-9)
	assert.InDelta(t, 5.0, m.MedianCloseTime, 1e-9)
	assert.Equal(t, 4.0, m.MedianCommentsBeforeClose)
	assert.Equal(t, 4.0, m.AvgCommentsBeforeClose)
	assert.Equal(t, 0, m.NumClosedZeroComments)
	assert.InDelta(t, 2.0/3.0, m.AvgRecentComments, 1e-9)
	assert.Equal(t, 0.0, m.MedianRecentComments)

	assert.Equal(t, []models.Author{{Login: "alice"}, {Login: "bob"}}, m.UniqueAuthors)
	assert.Equal(t, []models.Author{{Login: "bob"}}, m.NewAuthors)
	assert.Equal(t, []models.Author{{Login: "alice"}}, m.RecurAuthors)
	assert.Equal(t, m.NumUniqueAuthors, m.NumNewAuthors+m.NumRecurAuthors)

	assert.Equal(t, 0, snap.PullRequests.NumOpened)
	assert.Equal(t, 0.0, snap.PullRequests.AvgCloseTime)
	assert.Nil(t, snap.Issues.MaxToxic)

	assert.NotEmpty(t, snap.RunID)
	assert.Equal(t, at(8), snap.ComputedAt)
	assert.Equal(t, testWindow(), snap.Window)
	p.AssertExpectations(t)
}

func TestAggregator_BotsNeverAppear(t *testing.T) {
	issues := []models.Conversation{
		conv(1, "dependabot[bot]", at(2), 0),
		conv(2, "alice", at(2), 0),
	}
	prs := []models.Conversation{
		conv(3, "Renovate[bot]", at(2), 0),
	}
	p := setupProvider(issues, prs, []models.Comment{}, []models.Comment{})
	h := &fakeHistory{first: map[string]time.Time{"alice": at(-10)}}

	snap, err := newAggregator(p, h, scorer{}).Build(context.Background(), "o", "r", models.PeriodWeek, 0, testWindow())
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Issues.NumOpened)
	assert.Equal(t, []models.Author{{Login: "alice"}}, snap.Issues.UniqueAuthors)
	assert.Empty(t, snap.PullRequests.UniqueAuthors)
	assert.Empty(t, snap.PullRequests.NewAuthors)
	assert.Equal(t, []string{"alice"}, h.calls)
}

func TestAggregator_SharedTenureAcrossKinds(t *testing.T) {
	issues := []models.Conversation{conv(1, "alice", at(2), 0)}
	prs := []models.Conversation{conv(2, "alice", at(2), 0), conv(3, "bob", at(2), 0)}
	p := setupProvider(issues, prs, []models.Comment{}, []models.Comment{})
	h := &fakeHistory{first: map[string]time.Time{
		"alice": time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		"bob":   time.Date(2024, 2, 8, 0, 0, 0, 0, time.UTC),
	}}

	snap, err := newAggregator(p, h, scorer{}).Build(context.Background(), "o", "r", models.PeriodWeek, 0, models.TimeWindow{
		Since: at(1),
		End:   time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.InDelta(t, 1.5, snap.AvgTenure, 1e-9)
	assert.Len(t, h.calls, 2)
}

func TestAggregator_UnclassifiedAuthorKeepsSumInvariant(t *testing.T) {
	issues := []models.Conversation{
		conv(1, "alice", at(2), 0),
		conv(2, "broken", at(2), 0),
	}
	p := setupProvider(issues, []models.Conversation{}, []models.Comment{}, []models.Comment{})
	h := &fakeHistory{
		first: map[string]time.Time{"alice": at(-10)},
		errs:  map[string]error{"broken": errors.New("lookup failed")},
	}

	snap, err := newAggregator(p, h, scorer{}).Build(context.Background(), "o", "r", models.PeriodWeek, 0, testWindow())
	require.NoError(t, err)

	m := snap.Issues
	assert.Equal(t, []models.Author{{Login: "broken"}}, m.UnclassifiedAuthors)
	assert.Equal(t, 1, m.NumUniqueAuthors)
	assert.Equal(t, m.NumUniqueAuthors, m.NumNewAuthors+m.NumRecurAuthors)
}

func TestAggregator_ToxicityOnInWindowComments(t *testing.T) {
	issueComments := []models.Comment{
		{ID: 1, Body: "before window", ParentNumber: 9, Kind: models.KindIssue, CreatedAt: at(0.5)},
		{ID: 2, Body: "calm", ParentNumber: 5, Kind: models.KindIssue, CreatedAt: at(2)},
		{ID: 3, Body: "nasty", ParentNumber: 5, Kind: models.KindIssue, CreatedAt: at(3)},
	}
	reviewComments := []models.Comment{
		{ID: 4, Body: "fine", ParentNumber: 6, Kind: models.KindPullRequest, CreatedAt: at(2)},
	}
	p := setupProvider([]models.Conversation{}, []models.Conversation{}, issueComments, reviewComments)
	s := scorer{"before window": 0.99, "calm": 0.02, "nasty": 0.6, "fine": 0.01}

	snap, err := newAggregator(p, &fakeHistory{}, s).Build(context.Background(), "o", "r", models.PeriodWeek, 0, testWindow())
	require.NoError(t, err)

	require.Equal(t, 1, snap.Issues.NumToxicConversations)
	assert.Equal(t, 5, snap.Issues.ToxicConversations[0].Number)
	assert.Equal(t, 1, snap.Issues.NumToxicComments)
	require.NotNil(t, snap.Issues.MaxToxic)
	assert.Equal(t, 0.6, *snap.Issues.MaxToxic)

	assert.Equal(t, 0, snap.PullRequests.NumToxicConversations)
	require.NotNil(t, snap.PullRequests.MaxToxic)
	assert.Equal(t, 0.01, *snap.PullRequests.MaxToxic)
}

func TestAggregator_FetchFailureIsRunFatal(t *testing.T) {
	p := new(MockProvider)
	p.On("ListConversations", mock.Anything, "o", "r", at(1)).Return([]models.Conversation(nil), []models.Conversation(nil), errors.New("page 3 failed"))
	p.On("ListIssueComments", mock.Anything, "o", "r", at(1)).Return([]models.Comment{}, nil).Maybe()
	p.On("ListReviewComments", mock.Anything, "o", "r", at(1)).Return([]models.Comment{}, nil).Maybe()

	snap, err := newAggregator(p, &fakeHistory{}, scorer{}).Build(context.Background(), "o", "r", models.PeriodWeek, 0, testWindow())
	assert.Nil(t, snap)

	var runErr *apperrors.RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, apperrors.StageFetch, runErr.Stage)
	assert.Equal(t, "o", runErr.Owner)
	assert.Equal(t, "r", runErr.Repo)
}

func TestAggregator_CancelledClassificationIsRunFatal(t *testing.T) {
	issues := []models.Conversation{conv(1, "alice", at(2), 0)}
	p := setupProvider(issues, []models.Conversation{}, []models.Comment{}, []models.Comment{})
	h := &fakeHistory{errs: map[string]error{"alice": context.DeadlineExceeded}}

	_, err := newAggregator(p, h, scorer{}).Build(context.Background(), "o", "r", models.PeriodWeek, 0, testWindow())

	var runErr *apperrors.RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, apperrors.StageClassify, runErr.Stage)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAggregator_RejectedHistoryCredentialsAreRunFatal(t *testing.T) {
	issues := []models.Conversation{conv(1, "alice", at(2), 0), conv(2, "bob", at(2), 0)}
	p := setupProvider(issues, []models.Conversation{}, []models.Comment{}, []models.Comment{})
	denied := apperrors.NewUnauthorizedError("bad credentials", nil)
	h := &fakeHistory{errs: map[string]error{"alice": denied, "bob": denied}}

	snap, err := newAggregator(p, h, scorer{}).Build(context.Background(), "o", "r", models.PeriodWeek, 0, testWindow())
	assert.Nil(t, snap)

	var runErr *apperrors.RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, apperrors.StageClassify, runErr.Stage)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestAggregator_RejectedScorerCredentialsAreRunFatal(t *testing.T) {
	issueComments := []models.Comment{
		{ID: 1, Body: "one", ParentNumber: 1, Kind: models.KindIssue, CreatedAt: at(2)},
		{ID: 2, Body: "two", ParentNumber: 2, Kind: models.KindIssue, CreatedAt: at(2)},
		{ID: 3, Body: "three", ParentNumber: 3, Kind: models.KindIssue, CreatedAt: at(2)},
	}
	p := setupProvider([]models.Conversation{}, []models.Conversation{}, issueComments, []models.Comment{})

	snap, err := newAggregator(p, &fakeHistory{}, deniedScorer{}).Build(context.Background(), "o", "r", models.PeriodWeek, 0, testWindow())
	assert.Nil(t, snap)

	var runErr *apperrors.RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, apperrors.StageDetect, runErr.Stage)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestAggregator_BotCommentsAreNotScored(t *testing.T) {
	issueComments := []models.Comment{
		{ID: 1, Body: "automated nag", ParentNumber: 5, Kind: models.KindIssue, CreatedAt: at(2), Author: models.Author{Login: "github-actions[bot]"}},
		{ID: 2, Body: "thanks", ParentNumber: 6, Kind: models.KindIssue, CreatedAt: at(2), Author: models.Author{Login: "alice"}},
	}
	reviewComments := []models.Comment{
		{ID: 3, Body: "bump it", ParentNumber: 7, Kind: models.KindPullRequest, CreatedAt: at(2), Author: models.Author{Login: "Dependabot"}},
	}
	p := setupProvider([]models.Conversation{}, []models.Conversation{}, issueComments, reviewComments)
	s := scorer{"automated nag": 0.95, "thanks": 0.01, "bump it": 0.9}

	snap, err := newAggregator(p, &fakeHistory{}, s).Build(context.Background(), "o", "r", models.PeriodWeek, 0, testWindow())
	require.NoError(t, err)

	assert.Equal(t, 0, snap.Issues.NumToxicConversations)
	assert.Empty(t, snap.Issues.ToxicComments)
	require.NotNil(t, snap.Issues.MaxToxic)
	assert.Equal(t, 0.01, *snap.Issues.MaxToxic)

	assert.Equal(t, 0, snap.PullRequests.NumToxicConversations)
	assert.Nil(t, snap.PullRequests.MaxToxic)
}

func TestAggregator_InvalidWindow(t *testing.T) {
	_, err := newAggregator(new(MockProvider), &fakeHistory{}, scorer{}).Build(context.Background(), "o", "r", models.PeriodWeek, 0, models.TimeWindow{Since: at(2), End: at(1)})

	var runErr *apperrors.RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, apperrors.StageAggregate, runErr.Stage)
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestLoadBotList(t *testing.T) {
	list, err := LoadBotList("")
	require.NoError(t, err)
	assert.True(t, list.Contains("dependabot"))
	assert.Equal(t, len(DefaultBots), list.Len())

	path := filepath.Join(t.TempDir(), "bots.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bots:\n  - ci-helper\n  - Release-Bot\n"), 0o600))

	list, err = LoadBotList(path)
	require.NoError(t, err)
	assert.True(t, list.Contains("ci-helper"))
	assert.True(t, list.Contains("release-bot"))
	assert.True(t, list.Contains("github-actions[bot]"))
	assert.False(t, list.Contains("alice"))

	_, err = LoadBotList(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("bots: [unterminated"), 0o600))
	_, err = LoadBotList(bad)
	assert.Error(t, err)
}
