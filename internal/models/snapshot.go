package models

import "time"

// AuthorClassification is the new/recurring verdict for one author in one window
type AuthorClassification struct {
	Author       Author  `json:"author"`
	TenureMonths float64 `json:"tenure_months"`
	IsNew        bool    `json:"is_new"`
}

// KindMetrics holds every statistic computed for one conversation kind
type KindMetrics struct {
	NumOpened             int `json:"num_opened"`
	NumClosed             int `json:"num_closed"`
	NumClosedZeroComments int `json:"num_closed_0_comments"`

	AvgCloseTime              float64 `json:"avg_close_time"`
	MedianCloseTime           float64 `json:"median_close_time"`
	AvgCommentsBeforeClose    float64 `json:"avg_comments_before_close"`
	MedianCommentsBeforeClose float64 `json:"median_comments_before_close"`
	AvgRecentComments         float64 `json:"avg_recent_comments"`
	MedianRecentComments      float64 `json:"median_recent_comments"`

	UniqueAuthors       []Author `json:"unique_authors"`
	NewAuthors          []Author `json:"new_authors"`
	RecurAuthors        []Author `json:"recur_authors"`
	UnclassifiedAuthors []Author `json:"unclassified_authors,omitempty"`
	NumUniqueAuthors    int      `json:"num_unique_authors"`
	NumNewAuthors       int      `json:"num_new_authors"`
	NumRecurAuthors     int      `json:"num_recur_authors"`

	ToxicConversations    []Conversation `json:"toxic_convos"`
	NumToxicConversations int            `json:"num_toxic_convos"`
	ToxicComments         []ToxicComment `json:"toxic_comments"`
	NumToxicComments      int            `json:"num_toxic_comments"`
	MaxToxic              *float64       `json:"max_toxic"`
}

// MetricsSnapshot is one fully aggregated metrics record for a repository and window.
// It is built once and not modified afterwards.
type MetricsSnapshot struct {
	RunID        string      `json:"run_id"`
	Owner        string      `json:"owner"`
	Repo         string      `json:"repo"`
	Period       Period      `json:"period"`
	Offset       int         `json:"offset"`
	Window       TimeWindow  `json:"window"`
	Issues       KindMetrics `json:"issues"`
	PullRequests KindMetrics `json:"pull_requests"`
	AvgTenure    float64     `json:"avg_tenure"`
	ComputedAt   time.Time   `json:"computed_at"`
}
