package toxicity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
	"github.com/alliefeldman/climatecoachbot/internal/models"
)

// DefaultPerspectiveURL is the public Perspective comment analyzer endpoint
const DefaultPerspectiveURL = "https://commentanalyzer.googleapis.com/v1alpha1/comments:analyze"

const (
	attributeToxicity       = "TOXICITY"
	attributeIdentityAttack = "IDENTITY_ATTACK"
)

// Scorer scores a single text. A rate limited call returns *errors.RateLimitError.
type Scorer interface {
	Score(ctx context.Context, text string) (models.ToxicityScore, error)
}

type analyzeRequest struct {
	Comment             analyzeComment      `json:"comment"`
	Languages           []string            `json:"languages,omitempty"`
	RequestedAttributes map[string]struct{} `json:"requestedAttributes"`
	DoNotStore          bool                `json:"doNotStore"`
}

type analyzeComment struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	AttributeScores map[string]struct {
		SummaryScore struct {
			Value float64 `json:"value"`
		} `json:"summaryScore"`
	} `json:"attributeScores"`
}

// PerspectiveClient scores comment bodies with the Perspective API
type PerspectiveClient struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
	languages  []string
	logger     *logrus.Logger
}

// PerspectiveOption allows configuring the Perspective client
type PerspectiveOption func(*PerspectiveClient)

// WithEndpoint overrides the analyzer endpoint
func WithEndpoint(endpoint string) PerspectiveOption {
	return func(c *PerspectiveClient) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(client *http.Client) PerspectiveOption {
	return func(c *PerspectiveClient) {
		c.httpClient = client
	}
}

// WithLanguages restricts analysis to the given languages
func WithLanguages(languages ...string) PerspectiveOption {
	return func(c *PerspectiveClient) {
		c.languages = languages
	}
}

// NewPerspectiveClient creates a new Perspective API client
func NewPerspectiveClient(apiKey string, logger *logrus.Logger, opts ...PerspectiveOption) *PerspectiveClient {
	c := &PerspectiveClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		endpoint:   DefaultPerspectiveURL,
		languages:  []string{"en"},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Score requests toxicity and identity attack scores for text
func (c *PerspectiveClient) Score(ctx context.Context, text string) (models.ToxicityScore, error) {
	payload, err := json.Marshal(analyzeRequest{
		Comment:   analyzeComment{Text: text},
		Languages: c.languages,
		RequestedAttributes: map[string]struct{}{
			attributeToxicity:       {},
			attributeIdentityAttack: {},
		},
		DoNotStore: true,
	})
	if err != nil {
		return models.ToxicityScore{}, fmt.Errorf("failed to encode analyze request: %w", err)
	}

	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return models.ToxicityScore{}, apperrors.NewValidationError("invalid Perspective endpoint", err)
	}
	query := endpoint.Query()
	query.Set("key", c.apiKey)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return models.ToxicityScore{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.ToxicityScore{}, fmt.Errorf("perspective request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.ToxicityScore{}, fmt.Errorf("failed to read perspective response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.ToxicityScore{}, &apperrors.RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode == http.StatusBadRequest:
		return models.ToxicityScore{}, apperrors.NewValidationError("perspective rejected the comment", fmt.Errorf("%s", strings.TrimSpace(string(body))))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.ToxicityScore{}, apperrors.NewUnauthorizedError("perspective rejected the API key", nil)
	case resp.StatusCode != http.StatusOK:
		return models.ToxicityScore{}, apperrors.NewInternalError(fmt.Sprintf("perspective returned status %d", resp.StatusCode), nil)
	}

	var decoded analyzeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return models.ToxicityScore{}, fmt.Errorf("failed to decode perspective response: %w", err)
	}

	var score models.ToxicityScore
	if s, ok := decoded.AttributeScores[attributeToxicity]; ok {
		v := s.SummaryScore.Value
		score.Toxic = &v
	}
	if s, ok := decoded.AttributeScores[attributeIdentityAttack]; ok {
		v := s.SummaryScore.Value
		score.Attack = &v
	}
	return score, nil
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
