package toxicity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
	"github.com/alliefeldman/climatecoachbot/internal/models"
	"github.com/alliefeldman/climatecoachbot/internal/quota"
)

func TestPerspectiveClient_Score(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "you are wrong", req.Comment.Text)
		assert.True(t, req.DoNotStore)
		assert.Contains(t, req.RequestedAttributes, attributeToxicity)
		assert.Contains(t, req.RequestedAttributes, attributeIdentityAttack)

		w.Write([]byte(`{"attributeScores": {
			"TOXICITY": {"summaryScore": {"value": 0.42, "type": "PROBABILITY"}},
			"IDENTITY_ATTACK": {"summaryScore": {"value": 0.07, "type": "PROBABILITY"}}
		}}`))
	}))
	defer server.Close()

	client := NewPerspectiveClient("test-key", quietLogger(), WithEndpoint(server.URL))
	s, err := client.Score(context.Background(), "you are wrong")
	require.NoError(t, err)
	require.NotNil(t, s.Toxic)
	require.NotNil(t, s.Attack)
	assert.Equal(t, 0.42, *s.Toxic)
	assert.Equal(t, 0.07, *s.Attack)
}

func TestPerspectiveClient_MissingAttributeIsNull(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"attributeScores": {"TOXICITY": {"summaryScore": {"value": 0}}}}`))
	}))
	defer server.Close()

	client := NewPerspectiveClient("k", quietLogger(), WithEndpoint(server.URL))
	s, err := client.Score(context.Background(), "hello")
	require.NoError(t, err)
	require.NotNil(t, s.Toxic)
	assert.Equal(t, 0.0, *s.Toxic)
	assert.Nil(t, s.Attack)
}

func TestPerspectiveClient_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		check      func(t *testing.T, err error)
	}{
		{
			name:       "rate limited with retry after",
			status:     http.StatusTooManyRequests,
			retryAfter: "3",
			check: func(t *testing.T, err error) {
				var rl *apperrors.RateLimitError
				require.True(t, errors.As(err, &rl))
				delay, ok := rl.RetryDelay()
				assert.True(t, ok)
				assert.Equal(t, 3*time.Second, delay)
			},
		},
		{
			name:   "rate limited without retry after",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				var rl *apperrors.RateLimitError
				require.True(t, errors.As(err, &rl))
				_, ok := rl.RetryDelay()
				assert.False(t, ok)
			},
		},
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			check: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsInvalidInput(err))
			},
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsUnauthorized(err))
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				assert.False(t, apperrors.IsRateLimit(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error": {"message": "nope"}}`))
			}))
			defer server.Close()

			client := NewPerspectiveClient("k", quietLogger(), WithEndpoint(server.URL))
			_, err := client.Score(context.Background(), "text")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGovernedScorer(t *testing.T) {
	noSleep := quota.WithRetrySleep(func(ctx context.Context, d time.Duration) error { return nil })
	cfg := quota.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}

	t.Run("retries rate limited calls", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{"attributeScores": {"TOXICITY": {"summaryScore": {"value": 0.3}}}}`))
		}))
		defer server.Close()

		g := NewGovernedScorer(
			NewPerspectiveClient("k", quietLogger(), WithEndpoint(server.URL)),
			quota.NewRetrier(cfg, quietLogger(), noSleep),
			quietLogger(),
		)
		s, err := g.Score(context.Background(), "text")
		require.NoError(t, err)
		require.NotNil(t, s.Toxic)
		assert.Equal(t, 0.3, *s.Toxic)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("exhausted retries give a null score", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		g := NewGovernedScorer(
			NewPerspectiveClient("k", quietLogger(), WithEndpoint(server.URL)),
			quota.NewRetrier(cfg, quietLogger(), noSleep),
			quietLogger(),
		)
		s, err := g.Score(context.Background(), "text")
		require.NoError(t, err)
		assert.Equal(t, models.ToxicityScore{}, s)
	})

	t.Run("other errors propagate without retry", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		g := NewGovernedScorer(
			NewPerspectiveClient("k", quietLogger(), WithEndpoint(server.URL)),
			quota.NewRetrier(cfg, quietLogger(), noSleep),
			quietLogger(),
		)
		_, err := g.Score(context.Background(), "text")
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidInput(err))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}
