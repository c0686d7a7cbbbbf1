package models

import "time"

// Kind distinguishes issues from pull requests. Every per-kind statistic is
// computed once for each kind and never merged.
type Kind string

const (
	KindIssue       Kind = "issues"
	KindPullRequest Kind = "pull_requests"
)

// Kinds lists the conversation kinds in report order
var Kinds = []Kind{KindIssue, KindPullRequest}

// Conversation state values
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// Author identifies a contributor. Identity is the login.
type Author struct {
	Login      string `json:"login"`
	ProfileURL string `json:"profile_url"`
}

// Conversation is an issue or a pull request
type Conversation struct {
	ID           int64      `json:"id"`
	Number       int        `json:"number"`
	Title        string     `json:"title"`
	URL          string     `json:"html_url"`
	State        string     `json:"state"`
	Kind         Kind       `json:"kind"`
	CreatedAt    time.Time  `json:"created_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	CommentCount int        `json:"comments"`
	Author       Author     `json:"author"`
}

// IsClosed reports whether the conversation is closed and carries a close time
func (c *Conversation) IsClosed() bool {
	return c.State == StateClosed && c.ClosedAt != nil
}

// Comment is a single issue comment or pull request review comment.
// ParentNumber is the number of the conversation it belongs to.
type Comment struct {
	ID           int64     `json:"id"`
	Body         string    `json:"body"`
	URL          string    `json:"html_url"`
	CreatedAt    time.Time `json:"created_at"`
	ParentNumber int       `json:"parent_number"`
	ParentURL    string    `json:"parent_url"`
	Kind         Kind      `json:"kind"`
	Author       Author    `json:"author"`
}

// ToxicityScore is the scorer result for one text. A nil field means the
// scorer did not produce that attribute and must not be read as zero.
type ToxicityScore struct {
	Toxic  *float64 `json:"toxic"`
	Attack *float64 `json:"attack"`
}

// ToxicComment is a comment that crossed the toxicity threshold
type ToxicComment struct {
	Comment
	Toxic float64 `json:"toxic"`
}

// RateLimit is the remaining quota disclosed by the repository host
type RateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}
