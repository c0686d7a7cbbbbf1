package models

import (
	"fmt"
	"time"
)

// Period is the length of one metrics window
type Period string

const (
	PeriodDay  Period = "day"
	PeriodWeek Period = "week"
)

// Duration returns the length of the period, or zero for an unknown period
func (p Period) Duration() time.Duration {
	switch p {
	case PeriodDay:
		return 24 * time.Hour
	case PeriodWeek:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// Valid reports whether p is a supported period
func (p Period) Valid() bool {
	return p.Duration() > 0
}

// TimeWindow is the half-open interval [Since, End) a snapshot covers
type TimeWindow struct {
	Since time.Time `json:"since"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside [Since, End)
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Since) && t.Before(w.End)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s, %s)", w.Since.Format(time.RFC3339), w.End.Format(time.RFC3339))
}
