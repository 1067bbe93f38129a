package classify

import (
	"math"
	"math/cmplx"
	"time"

	"github.com/mjibson/go-dsp/fft"

	"github.com/cybre/sleepwake/internal/utils"
)

// Band is an inclusive frequency span in Hz used for energy bucketing.
type Band struct {
	Low  float64
	High float64
}

// PhysiologicalBands groups the capacitive signal into breathing, cardiac,
// and gross-movement frequency ranges at the 100Hz sample regime.
func PhysiologicalBands() [3]Band {
	return [3]Band{
		{Low: 0.1, High: 0.6},
		{Low: 0.6, High: 2.5},
		{Low: 2.5, High: 10},
	}
}

var bandNames = [3]string{"band_breath", "band_cardiac", "band_movement"}

// SpectralExtractor is the reference FeatureExtractor. It computes Hann-
// windowed FFT band energies plus time-domain statistics over a full window
// snapshot. Scratch buffers are reused to keep allocations predictable on the
// classification cadence.
type SpectralExtractor struct {
	sampleRate float64
	bands      [3]Band
	window     []float64
	scratch    []float64
}

// NewSpectralExtractor constructs an extractor for the given sample rate.
func NewSpectralExtractor(sampleRateHz float64) *SpectralExtractor {
	if sampleRateHz <= 0 {
		panic("classify: sample rate must be > 0")
	}
	return &SpectralExtractor{
		sampleRate: sampleRateHz,
		bands:      PhysiologicalBands(),
	}
}

// Extract implements FeatureExtractor. ok is false when fewer samples than
// the window requires are supplied, mirroring the snapshot gating upstream.
func (e *SpectralExtractor) Extract(times []time.Time, voltages []float64, anchor time.Time, windowSeconds int) (FeatureRow, bool, error) {
	need := int(float64(windowSeconds) * e.sampleRate)
	if len(voltages) < need || len(voltages) == 0 {
		return FeatureRow{}, false, nil
	}

	n := len(voltages)
	var sum float64
	for _, v := range voltages {
		sum += v
	}
	mean := sum / float64(n)

	var varSum float64
	for _, v := range voltages {
		d := v - mean
		varSum += d * d
	}
	std := math.Sqrt(varSum / float64(n))

	if len(e.window) != n {
		e.window = hannWindow(n)
		e.scratch = make([]float64, n)
	}
	for i, v := range voltages {
		e.scratch[i] = (v - mean) * e.window[i]
	}

	spectrum := fft.FFTReal(e.scratch)
	half := len(spectrum)/2 + 1
	binWidth := e.sampleRate / float64(n)

	var totalEnergy, peakMagnitude, peakFreq float64
	magnitudes := make([]float64, half)
	for i := 0; i < half; i++ {
		mag := cmplx.Abs(spectrum[i])
		magnitudes[i] = mag
		totalEnergy += mag * mag
		if i > 0 && mag > peakMagnitude {
			peakMagnitude = mag
			peakFreq = float64(i) * binWidth
		}
	}

	values := map[string]float64{
		"voltage_mean":       mean,
		"voltage_std":        std,
		"rms":                rootMeanSquare(voltages),
		"zero_crossing_rate": zeroCrossingRate(voltages, mean),
		"peak_frequency":     peakFreq,
		"total_energy":       totalEnergy,
	}

	for i, band := range e.bands {
		energy := bandEnergy(magnitudes, band, binWidth)
		values[bandNames[i]] = energy
		norm := 0.0
		if totalEnergy > 1e-12 {
			norm = utils.Clamp(energy/totalEnergy, 0.0, 1.0)
		}
		values[bandNames[i]+"_norm"] = norm
	}

	return FeatureRow{Timestamp: anchor, Values: values}, true, nil
}

func bandEnergy(magnitudes []float64, band Band, binWidth float64) float64 {
	if binWidth <= 0 {
		return 0
	}
	start := int(math.Floor(band.Low / binWidth))
	end := int(math.Ceil(band.High / binWidth))
	start = utils.Clamp(start, 0, len(magnitudes)-1)
	end = utils.Clamp(end, 0, len(magnitudes)-1)

	var total float64
	for i := start; i <= end; i++ {
		total += magnitudes[i] * magnitudes[i]
	}
	return total
}

func rootMeanSquare(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sumSquares float64
	for _, v := range values {
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

func zeroCrossingRate(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var crossings int
	prev := values[0] - mean
	for i := 1; i < len(values); i++ {
		curr := values[i] - mean
		if (prev >= 0 && curr < 0) || (prev < 0 && curr >= 0) {
			crossings++
		}
		prev = curr
	}
	return float64(crossings) / float64(len(values)-1)
}

func hannWindow(n int) []float64 {
	window := make([]float64, n)
	if n == 1 {
		window[0] = 1
		return window
	}
	for i := 0; i < n; i++ {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return window
}
