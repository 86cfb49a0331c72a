// Package stats holds the small numeric helpers shared by the forecasting layer.
package stats

import (
	"fmt"
	"math"
	"slices"
)

// Interval is a percentile-based spread around the median.
type Interval struct {
	Lower   float64 `json:"lower"`
	Median  float64 `json:"median"`
	Upper   float64 `json:"upper"`
	Level   float64 `json:"level"`
	Samples int     `json:"samples"`
}

// Percentile interpolates linearly between the closest ranks of an ascending slice.
// The target index is p/100*(n-1).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}

	idx := p / 100 * float64(n-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// ConfidenceInterval returns the central level% band of values.
// Empty input yields a zero interval with Samples=0.
func ConfidenceInterval(values []float64, level float64) (Interval, error) {
	if math.IsNaN(level) || level < 0 || level > 100 {
		return Interval{}, fmt.Errorf("confidence level must be within 0-100, got %v", level)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Interval{}, fmt.Errorf("value %d is not a finite number", i)
		}
	}

	res := Interval{Level: level, Samples: len(values)}
	if len(values) == 0 {
		return res, nil
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	tail := (100 - level) / 2
	res.Lower = Percentile(sorted, tail)
	res.Median = Percentile(sorted, 50)
	res.Upper = Percentile(sorted, 100-tail)
	return res, nil
}

// CalculateMedianContinuous finds the median value in a slice of floats.
func CalculateMedianContinuous(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	temp := slices.Clone(values)
	slices.Sort(temp)

	n := len(temp)
	if n%2 == 1 {
		return temp[n/2]
	}
	return (temp[n/2-1] + temp[n/2]) / 2.0
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
