package classify

import "github.com/rotisserie/eris"

// StagedClassifier chains three capability classifiers: an in-bed detector, an
// asleep detector, and a sleep-stage detector. Later stages only run when the
// earlier stage confirms, mirroring how the models were trained.
type StagedClassifier struct {
	inBed  Classifier
	asleep Classifier
	stage  Classifier
}

// NewStagedClassifier composes the three detectors.
func NewStagedClassifier(inBed, asleep, stage Classifier) *StagedClassifier {
	return &StagedClassifier{inBed: inBed, asleep: asleep, stage: stage}
}

// Classify runs the detector chain and returns the final label.
func (c *StagedClassifier) Classify(rows []FeatureRow) (Label, error) {
	if len(rows) == 0 {
		return "", eris.New("no feature rows to classify")
	}

	inBed, err := c.inBed.Classify(rows)
	if err != nil {
		return "", eris.Wrap(err, "in-bed detector")
	}
	if inBed != LabelInBed {
		return LabelNotInBed, nil
	}

	asleep, err := c.asleep.Classify(rows)
	if err != nil {
		return "", eris.Wrap(err, "asleep detector")
	}
	if asleep != LabelAsleep {
		return LabelAwake, nil
	}

	stage, err := c.stage.Classify(rows)
	if err != nil {
		return "", eris.Wrap(err, "stage detector")
	}
	return stage, nil
}

// ThresholdDetector is a reference detector that splits on a single feature
// value from the newest row. It keeps the pipeline runnable end-to-end when
// the trained models are not wired in.
type ThresholdDetector struct {
	Feature   string
	Threshold float64
	// Above is returned when the feature value is >= Threshold, Below
	// otherwise.
	Above Label
	Below Label
}

// Classify implements Classifier.
func (d ThresholdDetector) Classify(rows []FeatureRow) (Label, error) {
	if len(rows) == 0 {
		return "", eris.New("no feature rows to classify")
	}
	latest := rows[len(rows)-1]
	v, ok := latest.Values[d.Feature]
	if !ok {
		return "", eris.Errorf("feature %q missing from row", d.Feature)
	}
	if v >= d.Threshold {
		return d.Above, nil
	}
	return d.Below, nil
}

// DefaultStaged wires threshold detectors over the spectral extractor's
// feature names. Presence raises signal deviation; movement energy separates
// awake from asleep; low-band dominance separates deep from core sleep.
func DefaultStaged() *StagedClassifier {
	return NewStagedClassifier(
		ThresholdDetector{Feature: "voltage_std", Threshold: 0.008, Above: LabelInBed, Below: LabelNotInBed},
		ThresholdDetector{Feature: "band_movement_norm", Threshold: 0.35, Above: LabelAwake, Below: LabelAsleep},
		ThresholdDetector{Feature: "band_breath_norm", Threshold: 0.6, Above: LabelDeepSleep, Below: LabelCoreSleep},
	)
}
