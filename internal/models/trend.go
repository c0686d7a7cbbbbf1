package models

import "time"

// KindDelta mirrors the numeric fields of KindMetrics as relative change ratios
type KindDelta struct {
	NumUniqueAuthors          float64 `json:"delta_num_unique_authors"`
	NumNewAuthors             float64 `json:"delta_num_new_authors"`
	NumRecurAuthors           float64 `json:"delta_num_recur_authors"`
	NumClosed                 float64 `json:"delta_num_closed"`
	NumClosedZeroComments     float64 `json:"delta_num_closed_0_comments"`
	AvgCloseTime              float64 `json:"delta_avg_close_time"`
	MedianCloseTime           float64 `json:"delta_median_close_time"`
	AvgCommentsBeforeClose    float64 `json:"delta_avg_comments_before_close"`
	MedianCommentsBeforeClose float64 `json:"delta_median_comments_before_close"`
	NumOpened                 float64 `json:"delta_num_opened"`
	AvgRecentComments         float64 `json:"delta_avg_recent_comments"`
	MedianRecentComments      float64 `json:"delta_median_recent_comments"`
	NumToxicConversations     float64 `json:"delta_num_toxic_convos"`
	NumToxicComments          float64 `json:"delta_num_toxic_comments"`
	MaxToxic                  float64 `json:"delta_max_toxic"`
}

// TrendDelta compares a current snapshot against the previous one
type TrendDelta struct {
	LastWindow    TimeWindow `json:"last_window"`
	CurrentWindow TimeWindow `json:"current_window"`
	Issues        KindDelta  `json:"issues"`
	PullRequests  KindDelta  `json:"pull_requests"`
	AvgTenure     float64    `json:"avg_tenure"`
}

// Report is the unit handed to persistence: a snapshot pair and their trend
type Report struct {
	RunID     string           `json:"run_id"`
	Owner     string           `json:"owner"`
	Repo      string           `json:"repo"`
	Period    Period           `json:"period"`
	Last      *MetricsSnapshot `json:"last"`
	Current   *MetricsSnapshot `json:"current"`
	Trend     *TrendDelta      `json:"trend"`
	CreatedAt time.Time        `json:"created_at"`
}
