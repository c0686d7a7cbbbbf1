package batch

import (
	"context"
	"sync"
	"time"
)

// DefaultWorkers is used when a processor is created with fewer than one worker
const DefaultWorkers = 4

// Progress reports how far a fan-out has come
type Progress struct {
	Total          int
	Processed      int
	Failed         int
	StartTime      time.Time
	LastUpdateTime time.Time
}

// Processor runs independent items with a bounded number of workers
type Processor struct {
	workers int

	mu       sync.RWMutex
	progress Progress
}

// NewProcessor creates a new batch processor
func NewProcessor(workers int) *Processor {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Processor{workers: workers}
}

// Workers returns the configured concurrency
func (p *Processor) Workers() int {
	return p.workers
}

// Progress returns the progress of the most recent ForEach
func (p *Processor) Progress() Progress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progress
}

// ForEach calls fn for every item with at most p.Workers() calls in flight.
// The first error cancels the context passed to pending calls and is returned
// once every started call has finished.
func ForEach[T any](ctx context.Context, p *Processor, items []T, fn func(ctx context.Context, item T) error) error {
	p.reset(len(items))
	if len(items) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workerChan := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	var processErr error
	var mu sync.Mutex

	for _, item := range items {
		select {
		case <-ctx.Done():
			wg.Wait()
			mu.Lock()
			defer mu.Unlock()
			if processErr != nil {
				return processErr
			}
			return ctx.Err()
		case workerChan <- struct{}{}:
			wg.Add(1)
			go func(item T) {
				defer wg.Done()
				defer func() { <-workerChan }()

				err := fn(ctx, item)
				p.record(err)
				if err != nil {
					mu.Lock()
					if processErr == nil {
						processErr = err
						cancel()
					}
					mu.Unlock()
				}
			}(item)
		}
	}

	wg.Wait()
	return processErr
}

func (p *Processor) reset(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.progress = Progress{Total: total, StartTime: now, LastUpdateTime: now}
}

func (p *Processor) record(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.progress.Failed++
	} else {
		p.progress.Processed++
	}
	p.progress.LastUpdateTime = time.Now()
}
