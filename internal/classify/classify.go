// Package classify holds the classification ports the monitoring pipeline is
// built around, the closed sleep-state label vocabulary, and the fixed-cadence
// worker that turns rolling-window snapshots into labelled records.
package classify

import "time"

// Label is one of the closed set of sleep-state classifications.
type Label string

const (
	LabelNotInBed  Label = "notInBed"
	LabelAwake     Label = "inBed, Awake"
	LabelCoreSleep Label = "inBed, Asleep, Core Sleep"
	LabelREMSleep  Label = "inBed, Asleep, REM Sleep"
	LabelDeepSleep Label = "inBed, Asleep, Deep Sleep"

	// LabelInBed and LabelAsleep are intermediate stage outputs used between
	// detectors of a staged classifier; they never appear in final records.
	LabelInBed  Label = "inBed"
	LabelAsleep Label = "Asleep"
)

// IsAsleep reports whether the label is any of the asleep sub-states.
func (l Label) IsAsleep() bool {
	switch l {
	case LabelCoreSleep, LabelREMSleep, LabelDeepSleep:
		return true
	default:
		return false
	}
}

// IsCore reports whether the label marks core sleep, the family the cycle
// predictor tracks.
func (l Label) IsCore() bool {
	return l == LabelCoreSleep
}

// FeatureRow is one extracted feature snapshot anchored at a window start.
type FeatureRow struct {
	Timestamp time.Time
	Values    map[string]float64
}

// Record pairs a classification with the instant it was produced.
type Record struct {
	Time  time.Time
	Label Label
}

// FeatureExtractor turns a full rolling-window snapshot into a feature row.
// ok is false when the window content is insufficient for extraction; that is
// a skipped cycle, not an error.
type FeatureExtractor interface {
	Extract(times []time.Time, voltages []float64, anchor time.Time, windowSeconds int) (row FeatureRow, ok bool, err error)
}

// Classifier maps a feature row sequence (look-back history plus the newest
// row, oldest first) to a single label.
type Classifier interface {
	Classify(rows []FeatureRow) (Label, error)
}
