package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v62/github"

	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
)

// GitHubError is a failed GitHub API call that is neither a quota refusal nor an auth failure
type GitHubError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *GitHubError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GitHub API error (status %d): %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("GitHub API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *GitHubError) Unwrap() error {
	return e.Err
}

// NewGitHubError creates a new GitHubError with the given status code and message
func NewGitHubError(statusCode int, message string, err error) error {
	return &GitHubError{
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// mapError translates go-github errors into the application taxonomy
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var rle *gh.RateLimitError
	if errors.As(err, &rle) {
		return apperrors.NewRateLimitError(rle.Rate.Reset.Time, rle.Rate.Limit, rle.Rate.Remaining)
	}

	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &abuse) {
		rl := &apperrors.RateLimitError{}
		if abuse.RetryAfter != nil {
			rl.RetryAfter = *abuse.RetryAfter
		}
		return rl
	}

	var resp *gh.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil {
		switch resp.Response.StatusCode {
		case http.StatusUnauthorized:
			return apperrors.NewUnauthorizedError("GitHub rejected the credentials", err)
		case http.StatusNotFound:
			return apperrors.NewNotFoundError(resp.Message, err)
		}
		return NewGitHubError(resp.Response.StatusCode, resp.Message, err)
	}

	return NewGitHubError(0, "request failed", err)
}
