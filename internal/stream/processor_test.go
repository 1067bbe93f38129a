package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	samples []ProcessedSample
}

func (s *captureSink) AppendSamples(samples []ProcessedSample) error {
	s.samples = append(s.samples, samples...)
	return nil
}

func TestProcessorConvertsCountsToVolts(t *testing.T) {
	p := NewProcessor(ProcessorConfig{ADCScale: 4095, VRef: 3.3}, NewQueue(10), NewRollingWindow(1, 10), nil, testLogger())

	now := time.Now()
	processed := p.convert([]RawSample{
		{ArrivalTime: now, Value: 0},
		{ArrivalTime: now, Value: 4095},
	})

	require.Len(t, processed, 2)
	assert.Equal(t, 0.0, processed[0].Voltage)
	assert.InDelta(t, 3.3, processed[1].Voltage, 1e-9)
	assert.Equal(t, now, processed[0].Time)
}

func TestProcessorFeedsWindowAndSink(t *testing.T) {
	window := NewRollingWindow(1, 3)
	sink := &captureSink{}
	p := NewProcessor(ProcessorConfig{}, NewQueue(10), window, sink, testLogger())

	now := time.Now()
	err := p.process([]RawSample{
		{ArrivalTime: now, Value: 100},
		{ArrivalTime: now, Value: 200},
		{ArrivalTime: now, Value: 300},
	})
	require.NoError(t, err)

	snap, ok := window.Snapshot()
	require.True(t, ok)
	assert.Len(t, snap, 3)
	assert.Len(t, sink.samples, 3)
}
