// Package window turns a (period, offset) pair into a concrete time window.
package window

import (
	"fmt"
	"time"

	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
	"github.com/alliefeldman/climatecoachbot/internal/models"
)

// Resolver derives windows relative to a clock
type Resolver struct {
	now   func() time.Time
	align bool
}

// Option configures a Resolver
type Option func(*Resolver)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithMidnightAlignment truncates "now" to UTC midnight before resolving
func WithMidnightAlignment(align bool) Option {
	return func(r *Resolver) {
		r.align = align
	}
}

// NewResolver creates a new window resolver
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the window ending offset periods before now and starting one period earlier
func (r *Resolver) Resolve(period models.Period, offset int) (models.TimeWindow, error) {
	return Resolve(period, offset, r.reference())
}

// ResolvePair resolves two offsets against the same reference time
func (r *Resolver) ResolvePair(period models.Period, lastOffset, currentOffset int) (last, current models.TimeWindow, err error) {
	now := r.reference()
	if last, err = Resolve(period, lastOffset, now); err != nil {
		return models.TimeWindow{}, models.TimeWindow{}, err
	}
	if current, err = Resolve(period, currentOffset, now); err != nil {
		return models.TimeWindow{}, models.TimeWindow{}, err
	}
	return last, current, nil
}

func (r *Resolver) reference() time.Time {
	now := r.now().UTC()
	if r.align {
		now = now.Truncate(24 * time.Hour)
	}
	return now
}

// Resolve is the pure form of Resolver.Resolve for a fixed reference time
func Resolve(period models.Period, offset int, now time.Time) (models.TimeWindow, error) {
	if !period.Valid() {
		return models.TimeWindow{}, apperrors.NewValidationError(fmt.Sprintf("unsupported period %q", period), nil)
	}
	if offset < 0 {
		return models.TimeWindow{}, apperrors.NewValidationError(fmt.Sprintf("offset must be non-negative, got %d", offset), nil)
	}

	d := period.Duration()
	end := now.Add(-time.Duration(offset) * d)
	return models.TimeWindow{
		Since: end.Add(-d),
		End:   end,
	}, nil
}
