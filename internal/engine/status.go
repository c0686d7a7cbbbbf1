package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
	"github.com/alliefeldman/climatecoachbot/internal/models"
)

// StatusManager keeps the latest run status of every repository in memory
type StatusManager struct {
	mu    sync.RWMutex
	cache map[string]*models.RunStatus
	now   func() time.Time
}

// NewStatusManager creates a new status manager
func NewStatusManager(now func() time.Time) *StatusManager {
	if now == nil {
		now = time.Now
	}
	return &StatusManager{
		cache: make(map[string]*models.RunStatus),
		now:   now,
	}
}

// Start records that a run of repository began
func (m *StatusManager) Start(repository string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := &models.RunStatus{
		Repository: repository,
		Status:     models.RunStatusRunning,
		IsRunning:  true,
		StartedAt:  m.now().UTC(),
	}
	if prev, ok := m.cache[repository]; ok {
		status.LastRunID = prev.LastRunID
	}
	m.cache[repository] = status
}

// Complete records a successful run
func (m *StatusManager) Complete(repository, runID string) {
	m.finish(repository, func(s *models.RunStatus) {
		s.Status = models.RunStatusCompleted
		s.LastRunID = runID
		s.LastError = ""
	})
}

// Fail records a failed run
func (m *StatusManager) Fail(repository string, err error) {
	m.finish(repository, func(s *models.RunStatus) {
		s.Status = models.RunStatusFailed
		s.LastError = err.Error()
	})
}

func (m *StatusManager) finish(repository string, apply func(*models.RunStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.cache[repository]
	if !ok {
		status = &models.RunStatus{Repository: repository}
		m.cache[repository] = status
	}
	finished := m.now().UTC()
	status.IsRunning = false
	status.FinishedAt = &finished
	apply(status)
}

// GetStatus returns a copy of the status of repository
func (m *StatusManager) GetStatus(repository string) (*models.RunStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.cache[repository]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no run recorded for repository: %s", repository), nil)
	}
	copied := *status
	return &copied, nil
}

// ListStatuses returns copies of all statuses ordered by repository
func (m *StatusManager) ListStatuses() []*models.RunStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]*models.RunStatus, 0, len(m.cache))
	for _, status := range m.cache {
		copied := *status
		statuses = append(statuses, &copied)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Repository < statuses[j].Repository
	})
	return statuses
}
