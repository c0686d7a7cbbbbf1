package engine

import (
	"sync"

	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
)

// RunRegistry allows at most one active run per repository
type RunRegistry struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewRunRegistry creates a new run registry
func NewRunRegistry() *RunRegistry {
	return &RunRegistry{active: make(map[string]struct{})}
}

// Acquire marks repository as running. The returned release must be called
// when the run ends. A repository that is already running yields a
// *errors.RunInProgressError.
func (r *RunRegistry) Acquire(repository string) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, running := r.active[repository]; running {
		return nil, apperrors.NewRunInProgressError(repository)
	}
	r.active[repository] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.active, repository)
			r.mu.Unlock()
		})
	}, nil
}

// Running reports whether repository has an active run
func (r *RunRegistry) Running(repository string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, running := r.active[repository]
	return running
}
