package classify

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClassifier struct {
	label Label
	err   error
	calls int
}

func (c *fixedClassifier) Classify(rows []FeatureRow) (Label, error) {
	c.calls++
	return c.label, c.err
}

func row(values map[string]float64) FeatureRow {
	return FeatureRow{Values: values}
}

func TestStagedClassifierShortCircuitsOutOfBed(t *testing.T) {
	inBed := &fixedClassifier{label: LabelNotInBed}
	asleep := &fixedClassifier{label: LabelAsleep}
	stage := &fixedClassifier{label: LabelCoreSleep}

	c := NewStagedClassifier(inBed, asleep, stage)
	label, err := c.Classify([]FeatureRow{row(nil)})

	require.NoError(t, err)
	assert.Equal(t, LabelNotInBed, label)
	assert.Zero(t, asleep.calls)
	assert.Zero(t, stage.calls)
}

func TestStagedClassifierAwakeStopsBeforeStage(t *testing.T) {
	c := NewStagedClassifier(
		&fixedClassifier{label: LabelInBed},
		&fixedClassifier{label: LabelAwake},
		&fixedClassifier{label: LabelDeepSleep},
	)

	label, err := c.Classify([]FeatureRow{row(nil)})
	require.NoError(t, err)
	assert.Equal(t, LabelAwake, label)
}

func TestStagedClassifierFullChain(t *testing.T) {
	c := NewStagedClassifier(
		&fixedClassifier{label: LabelInBed},
		&fixedClassifier{label: LabelAsleep},
		&fixedClassifier{label: LabelREMSleep},
	)

	label, err := c.Classify([]FeatureRow{row(nil)})
	require.NoError(t, err)
	assert.Equal(t, LabelREMSleep, label)
}

func TestStagedClassifierWrapsStageErrors(t *testing.T) {
	c := NewStagedClassifier(
		&fixedClassifier{label: LabelInBed},
		&fixedClassifier{err: eris.New("model unavailable")},
		&fixedClassifier{label: LabelCoreSleep},
	)

	_, err := c.Classify([]FeatureRow{row(nil)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "asleep detector")
}

func TestThresholdDetector(t *testing.T) {
	d := ThresholdDetector{Feature: "rms", Threshold: 0.5, Above: LabelInBed, Below: LabelNotInBed}

	label, err := d.Classify([]FeatureRow{row(map[string]float64{"rms": 0.7})})
	require.NoError(t, err)
	assert.Equal(t, LabelInBed, label)

	label, err = d.Classify([]FeatureRow{row(map[string]float64{"rms": 0.2})})
	require.NoError(t, err)
	assert.Equal(t, LabelNotInBed, label)

	_, err = d.Classify([]FeatureRow{row(map[string]float64{})})
	assert.Error(t, err)
}

func TestLabelPredicates(t *testing.T) {
	assert.True(t, LabelCoreSleep.IsAsleep())
	assert.True(t, LabelDeepSleep.IsAsleep())
	assert.True(t, LabelREMSleep.IsAsleep())
	assert.False(t, LabelAwake.IsAsleep())
	assert.False(t, LabelNotInBed.IsAsleep())
	assert.True(t, LabelCoreSleep.IsCore())
	assert.False(t, LabelREMSleep.IsCore())
}
