package classify

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineSignal(freq, sampleRate float64, n int) ([]time.Time, []float64) {
	start := time.Now()
	times := make([]time.Time, n)
	voltages := make([]float64, n)
	for i := 0; i < n; i++ {
		times[i] = start.Add(time.Duration(float64(i) / sampleRate * float64(time.Second)))
		voltages[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	return times, voltages
}

func TestSpectralExtractorNotReadyOnShortInput(t *testing.T) {
	e := NewSpectralExtractor(100)
	times, voltages := sineSignal(1, 100, 50)

	_, ok, err := e.Extract(times, voltages, times[0], 30)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSpectralExtractorBreathingSignal(t *testing.T) {
	e := NewSpectralExtractor(100)
	// 0.3Hz is squarely inside the breathing band.
	times, voltages := sineSignal(0.3, 100, 3000)

	row, ok, err := e.Extract(times, voltages, times[0], 30)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, times[0], row.Timestamp)
	assert.InDelta(t, 0.0, row.Values["voltage_mean"], 1e-3)
	assert.Greater(t, row.Values["voltage_std"], 0.1)
	assert.Greater(t, row.Values["band_breath_norm"], 0.8)
	assert.Less(t, row.Values["band_movement_norm"], 0.1)
	assert.InDelta(t, 0.3, row.Values["peak_frequency"], 0.1)
}

func TestSpectralExtractorMovementSignal(t *testing.T) {
	e := NewSpectralExtractor(100)
	times, voltages := sineSignal(5, 100, 3000)

	row, ok, err := e.Extract(times, voltages, times[0], 30)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Greater(t, row.Values["band_movement_norm"], 0.8)
	assert.Less(t, row.Values["band_breath_norm"], 0.1)
	assert.InDelta(t, 5.0, row.Values["peak_frequency"], 0.2)
}
