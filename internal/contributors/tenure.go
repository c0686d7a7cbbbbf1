package contributors

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alliefeldman/climatecoachbot/internal/stats"
)

// firstContribution is the cached history lookup for one login
type firstContribution struct {
	at    time.Time
	found bool
}

// TenurePool is the per-run cache of earliest contribution dates and the
// shared pool of tenures across both conversation kinds. Create one per run.
type TenurePool struct {
	group singleflight.Group

	mu       sync.Mutex
	earliest map[string]firstContribution
	tenures  map[string]float64
}

// NewTenurePool creates an empty pool
func NewTenurePool() *TenurePool {
	return &TenurePool{
		earliest: make(map[string]firstContribution),
		tenures:  make(map[string]float64),
	}
}

// lookup returns the cached first contribution for login, calling fetch at
// most once per login even under concurrent callers. Failures are not cached.
func (p *TenurePool) lookup(ctx context.Context, login string, fetch func(ctx context.Context) (firstContribution, error)) (firstContribution, error) {
	p.mu.Lock()
	if fc, ok := p.earliest[login]; ok {
		p.mu.Unlock()
		return fc, nil
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do(login, func() (interface{}, error) {
		fc, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.earliest[login] = fc
		p.mu.Unlock()
		return fc, nil
	})
	if err != nil {
		return firstContribution{}, err
	}
	return v.(firstContribution), nil
}

// record stores the tenure of login unless one is already recorded
func (p *TenurePool) record(login string, months float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tenures[login]; !ok {
		p.tenures[login] = months
	}
}

// Average returns the mean tenure over every distinct author recorded, 0 when empty
func (p *TenurePool) Average() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	values := make([]float64, 0, len(p.tenures))
	for _, v := range p.tenures {
		values = append(values, v)
	}
	return stats.Average(values)
}

// Len returns the number of distinct authors with a recorded tenure
func (p *TenurePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tenures)
}

// MonthsBetween returns the fractional number of calendar months from start to
// end. Whole months are counted on the calendar and the remainder is the share
// of the following month that has elapsed. A start after end yields 0.
func MonthsBetween(start, end time.Time) float64 {
	start, end = start.UTC(), end.UTC()
	if !start.Before(end) {
		return 0
	}

	whole := (end.Year()-start.Year())*12 + int(end.Month()-start.Month())
	anchor := addMonths(start, whole)
	if anchor.After(end) {
		whole--
		anchor = addMonths(start, whole)
	}
	next := addMonths(start, whole+1)

	frac := float64(end.Sub(anchor)) / float64(next.Sub(anchor))
	return float64(whole) + frac
}

// addMonths adds n calendar months, clamping the day to the target month's length
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}
