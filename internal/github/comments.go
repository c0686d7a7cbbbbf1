package github

import (
	"context"
	"path"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v62/github"
	"github.com/sirupsen/logrus"

	"github.com/alliefeldman/climatecoachbot/internal/models"
)

// ListIssueComments returns every issue comment in the repository updated at or after since
func (c *Client) ListIssueComments(ctx context.Context, owner, repo string, since time.Time) ([]models.Comment, error) {
	if err := validateRepo(owner, repo); err != nil {
		return nil, err
	}

	opts := &gh.IssueListCommentsOptions{
		Since:       &since,
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	var result []models.Comment
	for {
		var comments []*gh.IssueComment
		resp, err := c.call(ctx, "list issue comments", func(ctx context.Context) (*gh.Response, error) {
			var resp *gh.Response
			var err error
			comments, resp, err = c.client.Issues.ListComments(ctx, owner, repo, 0, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		for _, comment := range comments {
			result = append(result, models.Comment{
				ID:           comment.GetID(),
				Body:         comment.GetBody(),
				URL:          comment.GetHTMLURL(),
				CreatedAt:    comment.GetCreatedAt().Time,
				ParentNumber: parentNumber(comment.GetIssueURL()),
				ParentURL:    parentURL(comment.GetHTMLURL()),
				Kind:         models.KindIssue,
				Author:       toAuthor(comment.GetUser()),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.logger.WithFields(logrus.Fields{
		"owner": owner,
		"repo":  repo,
		"count": len(result),
	}).Debug("Listed issue comments")

	return result, nil
}

// ListReviewComments returns every pull request review comment in the repository updated at or after since
func (c *Client) ListReviewComments(ctx context.Context, owner, repo string, since time.Time) ([]models.Comment, error) {
	if err := validateRepo(owner, repo); err != nil {
		return nil, err
	}

	opts := &gh.PullRequestListCommentsOptions{
		Since:       since,
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	var result []models.Comment
	for {
		var comments []*gh.PullRequestComment
		resp, err := c.call(ctx, "list review comments", func(ctx context.Context) (*gh.Response, error) {
			var resp *gh.Response
			var err error
			comments, resp, err = c.client.PullRequests.ListComments(ctx, owner, repo, 0, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		for _, comment := range comments {
			result = append(result, models.Comment{
				ID:           comment.GetID(),
				Body:         comment.GetBody(),
				URL:          comment.GetHTMLURL(),
				CreatedAt:    comment.GetCreatedAt().Time,
				ParentNumber: parentNumber(comment.GetPullRequestURL()),
				ParentURL:    parentURL(comment.GetHTMLURL()),
				Kind:         models.KindPullRequest,
				Author:       toAuthor(comment.GetUser()),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.logger.WithFields(logrus.Fields{
		"owner": owner,
		"repo":  repo,
		"count": len(result),
	}).Debug("Listed review comments")

	return result, nil
}

// parentNumber extracts the conversation number from an API URL such as
// https://api.github.com/repos/o/r/issues/12. It returns 0 when none is present.
func parentNumber(apiURL string) int {
	if apiURL == "" {
		return 0
	}
	n, err := strconv.Atoi(path.Base(apiURL))
	if err != nil {
		return 0
	}
	return n
}

// parentURL drops the comment anchor from a comment's html URL
func parentURL(htmlURL string) string {
	base, _, _ := strings.Cut(htmlURL, "#")
	return base
}
