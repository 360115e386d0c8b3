// Package insights detects sustained score declines and turns them into
// user-facing nudges.
package insights

import "math"

// Alert thresholds: the slope bound catches the decline, the volatility bound
// rejects noisy swings that would otherwise trip the slope on outliers.
const (
	alertSlopeThreshold  = -0.4
	alertStdDevThreshold = 2.5
	minTrendLength       = 4
)

// Slope returns the ordinary least-squares slope of the scores against their
// 0-based positions. A zero or non-finite denominator yields 0.
func Slope(values []float64) float64 {
	n := float64(len(values))
	if n == 0 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denominator := n*sumXX - sumX*sumX
	if denominator == 0 || math.IsNaN(denominator) {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denominator
}

// StdDev returns the population standard deviation (divide by n). Defined as
// 0 for fewer than two values.
func StdDev(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / n)
}

// Alerting reports whether the sequence shows a significant, stable downward
// trend: at least four points, slope below -0.4, and volatility below 2.5.
func Alerting(values []float64) bool {
	if len(values) < minTrendLength {
		return false
	}
	return Slope(values) < alertSlopeThreshold && StdDev(values) < alertStdDevThreshold
}
