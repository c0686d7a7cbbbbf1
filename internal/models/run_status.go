package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Run status values
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunStatus tracks the report run state of a repository
type RunStatus struct {
	Repository string     `json:"repository"`
	Status     string     `json:"status"`
	IsRunning  bool       `json:"is_running"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	LastRunID  string     `json:"last_run_id,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// String returns the JSON string representation of the run status
func (s *RunStatus) String() string {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal run status: %v"}`, err)
	}
	return string(data)
}
