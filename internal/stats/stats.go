// Package stats implements the numeric reductions used by the metrics snapshot.
// Both reductions return 0 for an empty input.
package stats

import "sort"

// Number is any value the reductions accept
type Number interface {
	~int | ~int64 | ~float64
}

// Average returns the arithmetic mean of values
func Average[T Number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// Median returns the middle value of the sorted values, or the mean of the
// two middle values for an even count. The input is not modified.
func Median[T Number](values []T) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	for i, v := range values {
		sorted[i] = float64(v)
	}
	sort.Float64s(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
