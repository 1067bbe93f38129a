package utils

import (
	"math"
	"sort"

	"golang.org/x/exp/constraints"
)

// Clamp constrains v to the range [minVal, maxVal].
func Clamp[T constraints.Ordered](v, minVal, maxVal T) T {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// CosineEase maps x in [0,1] onto a cosine ease-in-out curve in [0,1].
func CosineEase(x float64) float64 {
	x = Clamp(x, 0.0, 1.0)
	return (1 - math.Cos(x*math.Pi)) / 2
}

// RGBToInt packs three 8-bit channels into the single integer form used by
// bulb wire protocols.
func RGBToInt(r, g, b uint8) uint {
	return uint(r)<<16 | uint(g)<<8 | uint(b)
}

// Median returns the median of values. The input slice is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
