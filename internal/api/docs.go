package api

import (
	"time"

	_ "github.com/alliefeldman/climatecoachbot/docs"
)

// ErrorResponse represents an API error
// @Description Error response from the API
// @swagger:model ErrorResponse
type ErrorResponse struct {
	// Error message
	// @example metrics run already in progress for repository: octo/hello
	Error string `json:"error" example:"Failed to process request"`
}

// HealthResponse reports service liveness
// @Description Health check response
// @swagger:model HealthResponse
type HealthResponse struct {
	// Always "ok" when the process serves requests
	Status string `json:"status" example:"ok"`
	// Server time
	Timestamp time.Time `json:"timestamp" example:"2024-03-20T00:00:00Z"`
	// Whether reports are persisted
	Persistence bool `json:"persistence" example:"true"`
}

// RunStatus mirrors models.RunStatus for the API docs
// @Description Latest report run of a repository
// @swagger:model RunStatus
type RunStatus struct {
	// Repository as owner/name
	Repository string `json:"repository" example:"octo/hello"`
	// running, completed or failed
	Status string `json:"status" example:"completed"`
	// Whether a run is active
	IsRunning bool `json:"is_running" example:"false"`
	// When the latest run started
	StartedAt time.Time `json:"started_at" example:"2024-03-20T00:00:00Z"`
	// When the latest run ended
	FinishedAt *time.Time `json:"finished_at,omitempty" example:"2024-03-20T00:05:00Z"`
	// ID of the latest successful run
	LastRunID string `json:"last_run_id,omitempty" example:"0b8f8f0e-3a59-4a8e-9d43-8f3c1f3f2d11"`
	// Error of the latest failed run
	LastError string `json:"last_error,omitempty" example:"metrics run for octo/hello failed at fetch: rate limited"`
}
