package predict

import (
	"sort"
	"time"

	"github.com/cybre/sleepwake/internal/classify"
	"github.com/cybre/sleepwake/internal/utils"
)

// CycleConfig tunes sleep-cycle detection over the per-minute core-sleep
// signal.
type CycleConfig struct {
	// MaxMinutes bounds how much history feeds the estimate.
	MaxMinutes int
	// SmoothWindow is the centered rolling-mean width, in minutes.
	SmoothWindow int
	// MinSeparationMin is the minimum distance between accepted peaks.
	MinSeparationMin int
	MinHeight        float64
	MinProminence    float64
	// MinCycleMin/MaxCycleMin bound plausible inter-peak gaps; gaps outside
	// the range are discarded before taking the median.
	MinCycleMin int
	MaxCycleMin int
	// SnapWindow is how far past the predicted light-sleep boundary the alarm
	// may be pulled forward from.
	SnapWindow time.Duration
}

func (c CycleConfig) withDefaults() CycleConfig {
	if c.MaxMinutes <= 0 {
		c.MaxMinutes = 1440
	}
	if c.SmoothWindow <= 0 {
		c.SmoothWindow = 20
	}
	if c.MinSeparationMin <= 0 {
		c.MinSeparationMin = 70
	}
	if c.MinHeight <= 0 {
		c.MinHeight = 0.4
	}
	if c.MinProminence <= 0 {
		c.MinProminence = 0.1
	}
	if c.MinCycleMin <= 0 {
		c.MinCycleMin = 70
	}
	if c.MaxCycleMin <= 0 {
		c.MaxCycleMin = 120
	}
	if c.SnapWindow <= 0 {
		c.SnapWindow = 30 * time.Minute
	}
	return c
}

// PredictCycleWake estimates the next light-sleep boundary from the night's
// dominant-state trace and snaps the alarm onto it. It returns false whenever
// the trace is too thin, no periodic structure is found, or the alarm does
// not fall inside the snap window after the predicted boundary.
func PredictCycleWake(records []classify.Record, alarm time.Time, cfg CycleConfig) (time.Time, bool) {
	cfg = cfg.withDefaults()
	if len(records) == 0 || alarm.IsZero() {
		return time.Time{}, false
	}

	series, start := bucketCorePresence(records, cfg.MaxMinutes)
	if len(series) < cfg.SmoothWindow {
		return time.Time{}, false
	}

	smoothed := rollingMean(series, cfg.SmoothWindow)
	peaks := findPeaks(smoothed, cfg.MinSeparationMin, cfg.MinHeight, cfg.MinProminence)
	if len(peaks) < 2 {
		return time.Time{}, false
	}

	var gaps []float64
	for i := 1; i < len(peaks); i++ {
		gap := peaks[i] - peaks[i-1]
		if gap >= cfg.MinCycleMin && gap <= cfg.MaxCycleMin {
			gaps = append(gaps, float64(gap))
		}
	}
	if len(gaps) == 0 {
		return time.Time{}, false
	}

	cycle := time.Duration(utils.Median(gaps)) * time.Minute
	lastPeak := start.Add(time.Duration(peaks[len(peaks)-1]) * time.Minute)
	next := lastPeak.Add(cycle)
	for !next.After(lastPeak) {
		next = next.Add(cycle)
	}

	if alarm.Before(next) || alarm.After(next.Add(cfg.SnapWindow)) {
		return time.Time{}, false
	}
	return next, true
}

// bucketCorePresence projects the trace onto one-minute buckets, 1 where any
// core-family state was dominant that minute, bounded to the most recent
// maxMinutes.
func bucketCorePresence(records []classify.Record, maxMinutes int) ([]float64, time.Time) {
	start := records[0].Time.Truncate(time.Minute)
	end := records[len(records)-1].Time.Truncate(time.Minute)
	n := int(end.Sub(start)/time.Minute) + 1
	if n < 1 {
		return nil, start
	}
	if n > maxMinutes {
		start = start.Add(time.Duration(n-maxMinutes) * time.Minute)
		n = maxMinutes
	}

	series := make([]float64, n)
	for _, rec := range records {
		if !rec.Label.IsCore() {
			continue
		}
		idx := int(rec.Time.Truncate(time.Minute).Sub(start) / time.Minute)
		if idx >= 0 && idx < n {
			series[idx] = 1
		}
	}
	return series, start
}

// rollingMean applies a centered moving average, shrinking the window at the
// edges.
func rollingMean(series []float64, window int) []float64 {
	half := window / 2
	out := make([]float64, len(series))
	for i := range series {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > len(series) {
			hi = len(series)
		}
		var sum float64
		for _, v := range series[lo:hi] {
			sum += v
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

// findPeaks locates local maxima with height and prominence floors, then
// greedily keeps the tallest peaks subject to the minimum separation.
func findPeaks(series []float64, minSeparation int, minHeight, minProminence float64) []int {
	var candidates []int
	for i := 1; i < len(series)-1; i++ {
		if series[i] <= series[i-1] || series[i] < series[i+1] {
			continue
		}
		if series[i] < minHeight {
			continue
		}
		if prominence(series, i) < minProminence {
			continue
		}
		candidates = append(candidates, i)
	}

	// Tallest first, keep any peak far enough from all accepted ones.
	sort.Slice(candidates, func(a, b int) bool {
		return series[candidates[a]] > series[candidates[b]]
	})
	var kept []int
	for _, c := range candidates {
		ok := true
		for _, k := range kept {
			if abs(c-k) < minSeparation {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, c)
		}
	}
	sort.Ints(kept)
	return kept
}

// prominence measures how far the peak rises above the higher of its two
// bases. A base is the lowest point between the peak and the nearest taller
// sample (or the series edge).
func prominence(series []float64, peak int) float64 {
	height := series[peak]

	leftBase := height
	for i := peak - 1; i >= 0; i-- {
		if series[i] > height {
			break
		}
		if series[i] < leftBase {
			leftBase = series[i]
		}
	}

	rightBase := height
	for i := peak + 1; i < len(series); i++ {
		if series[i] > height {
			break
		}
		if series[i] < rightBase {
			rightBase = series[i]
		}
	}

	base := leftBase
	if rightBase > base {
		base = rightBase
	}
	return height - base
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
