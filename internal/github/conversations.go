package github

import (
	"context"
	"time"

	gh "github.com/google/go-github/v62/github"
	"github.com/sirupsen/logrus"

	"github.com/alliefeldman/climatecoachbot/internal/models"
)

// ListConversations returns every issue and every pull request created or
// updated at or after since. Both kinds come from one walk of the issues
// endpoint, which supports since and carries comment counts.
func (c *Client) ListConversations(ctx context.Context, owner, repo string, since time.Time) (issues, pullRequests []models.Conversation, err error) {
	if err := validateRepo(owner, repo); err != nil {
		return nil, nil, err
	}

	logger := c.logger.WithFields(logrus.Fields{
		"owner": owner,
		"repo":  repo,
		"since": since,
	})

	opts := &gh.IssueListByRepoOptions{
		State:       "all",
		Since:       since,
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	pages := 0
	for {
		var page []*gh.Issue
		resp, err := c.call(ctx, "list conversations", func(ctx context.Context) (*gh.Response, error) {
			var resp *gh.Response
			var err error
			page, resp, err = c.client.Issues.ListByRepo(ctx, owner, repo, opts)
			return resp, err
		})
		if err != nil {
			logger.WithError(err).WithField("page", opts.Page).Error("Failed to list conversations")
			return nil, nil, err
		}
		pages++

		for _, issue := range page {
			if issue.IsPullRequest() {
				pullRequests = append(pullRequests, toConversation(issue))
			} else {
				issues = append(issues, toConversation(issue))
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	logger.WithFields(logrus.Fields{
		"pages":         pages,
		"issues":        len(issues),
		"pull_requests": len(pullRequests),
	}).Debug("Listed conversations")

	return issues, pullRequests, nil
}

// ListIssues returns the issues half of ListConversations.
func (c *Client) ListIssues(ctx context.Context, owner, repo string, since time.Time) ([]models.Conversation, error) {
	issues, _, err := c.ListConversations(ctx, owner, repo, since)
	return issues, err
}

// ListPullRequests returns the pull request half of ListConversations.
// Callers that need both kinds should call ListConversations once instead.
func (c *Client) ListPullRequests(ctx context.Context, owner, repo string, since time.Time) ([]models.Conversation, error) {
	_, prs, err := c.ListConversations(ctx, owner, repo, since)
	return prs, err
}

// GetConversation fetches a single issue or pull request by number
func (c *Client) GetConversation(ctx context.Context, owner, repo string, number int) (models.Conversation, error) {
	if err := validateRepo(owner, repo); err != nil {
		return models.Conversation{}, err
	}

	var issue *gh.Issue
	_, err := c.call(ctx, "get conversation", func(ctx context.Context) (*gh.Response, error) {
		var resp *gh.Response
		var err error
		issue, resp, err = c.client.Issues.Get(ctx, owner, repo, number)
		return resp, err
	})
	if err != nil {
		return models.Conversation{}, err
	}
	return toConversation(issue), nil
}

// FirstConversation returns the earliest issue or pull request login ever opened
// in the repository, or nil when there is none.
func (c *Client) FirstConversation(ctx context.Context, owner, repo, login string) (*models.Conversation, error) {
	if err := validateRepo(owner, repo); err != nil {
		return nil, err
	}

	opts := &gh.IssueListByRepoOptions{
		Creator:     login,
		State:       "all",
		Sort:        "created",
		Direction:   "asc",
		ListOptions: gh.ListOptions{PerPage: 1},
	}

	var issues []*gh.Issue
	_, err := c.call(ctx, "first conversation", func(ctx context.Context) (*gh.Response, error) {
		var resp *gh.Response
		var err error
		issues, resp, err = c.client.Issues.ListByRepo(ctx, owner, repo, opts)
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	if len(issues) == 0 {
		return nil, nil
	}

	conv := toConversation(issues[0])
	return &conv, nil
}

func toConversation(issue *gh.Issue) models.Conversation {
	kind := models.KindIssue
	if issue.IsPullRequest() {
		kind = models.KindPullRequest
	}

	conv := models.Conversation{
		ID:           issue.GetID(),
		Number:       issue.GetNumber(),
		Title:        issue.GetTitle(),
		URL:          issue.GetHTMLURL(),
		State:        issue.GetState(),
		Kind:         kind,
		CreatedAt:    issue.GetCreatedAt().Time,
		CommentCount: issue.GetComments(),
		Author:       toAuthor(issue.GetUser()),
	}
	if issue.ClosedAt != nil {
		closed := issue.GetClosedAt().Time
		conv.ClosedAt = &closed
	}
	return conv
}

func toAuthor(user *gh.User) models.Author {
	return models.Author{
		Login:      user.GetLogin(),
		ProfileURL: user.GetHTMLURL(),
	}
}
