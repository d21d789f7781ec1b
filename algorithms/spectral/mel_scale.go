package spectral

import (
	"fmt"
	"math"

	"github.com/beyondboy/shennong/algorithms/common"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// HzToMel converts frequency in Hz to the HTK mel scale
func HzToMel(hz float64) float64 {
	return 1127.0 * math.Log(1.0+hz/700.0)
}

// MelToHz converts HTK mel scale to frequency in Hz
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Exp(mel/1127.0) - 1.0)
}

// FFTSize returns the FFT length used for a window of windowLength samples:
// the next power of two when positive, -windowLength when negative.
func FFTSize(windowLength int) int {
	if windowLength < 0 {
		return -windowLength
	}
	return common.NextPowerOfTwo(windowLength)
}

// MelFilterbankParams holds parameters for filterbank construction
type MelFilterbankParams struct {
	// WindowLength determines the FFT size, see FFTSize.
	WindowLength int
	SampleRate   int
	NumBands     int
	LowFreq      float64
	// HighFreq of 0 means the Nyquist frequency.
	HighFreq float64
}

// DefaultMelFilterbankParams returns default parameters for a window length
// and sample rate.
func DefaultMelFilterbankParams(windowLength, sampleRate int) MelFilterbankParams {
	return MelFilterbankParams{
		WindowLength: windowLength,
		SampleRate:   sampleRate,
		NumBands:     20,
		LowFreq:      0,
		HighFreq:     0,
	}
}

// MelFilterbank is a matrix of triangular filters shaped (nfft/2+1, bands).
// It is read-only once built.
type MelFilterbank struct {
	params  MelFilterbankParams
	nfft    int
	weights *mat.Dense
}

// NewMelFilterbank builds an HTK compatible triangular mel filterbank.
func NewMelFilterbank(params MelFilterbankParams) (*MelFilterbank, error) {
	if params.HighFreq == 0 {
		params.HighFreq = 0.5 * float64(params.SampleRate)
	}
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid filterbank: sample rate must be positive, got %d", params.SampleRate)
	}
	if params.NumBands <= 0 {
		return nil, fmt.Errorf("invalid filterbank: number of bands must be positive, got %d", params.NumBands)
	}
	if params.WindowLength == 0 {
		return nil, fmt.Errorf("invalid filterbank: window length must be non-zero")
	}
	if params.LowFreq < 0 || params.LowFreq >= params.HighFreq {
		return nil, fmt.Errorf("invalid filterbank: need 0 <= low (%g) < high (%g)", params.LowFreq, params.HighFreq)
	}
	fs := float64(params.SampleRate)
	if params.HighFreq > 0.5*fs {
		return nil, fmt.Errorf("invalid filterbank: high frequency %g above Nyquist %g", params.HighFreq, 0.5*fs)
	}

	nfft := FFTSize(params.WindowLength)
	numBins := nfft/2 + 1
	bands := params.NumBands

	binMel := make([]float64, numBins)
	for k := range binMel {
		binMel[k] = HzToMel(float64(k) * fs / float64(nfft))
	}

	centreMel := make([]float64, bands+2)
	floats.Span(centreMel, HzToMel(params.LowFreq), HzToMel(params.HighFreq))

	centreBin := make([]int, bands+2)
	for i, m := range centreMel {
		centreBin[i] = int(math.Floor(MelToHz(m)/fs*float64(nfft))) + 1
	}

	clip := func(k int) int { return max(0, min(k, numBins)) }

	weights := mat.NewDense(numBins, bands, nil)
	for i := range bands {
		for k := clip(centreBin[i]); k < clip(centreBin[i+1]); k++ {
			weights.Set(k, i, (centreMel[i]-binMel[k])/(centreMel[i]-centreMel[i+1]))
		}
		for k := clip(centreBin[i+1]); k < clip(centreBin[i+2]); k++ {
			weights.Set(k, i, (centreMel[i+2]-binMel[k])/(centreMel[i+2]-centreMel[i+1]))
		}
	}

	// HTK compatibility
	if params.LowFreq > 0 && params.LowFreq/fs*float64(nfft)+0.5 > float64(centreBin[0]) && centreBin[0] < numBins {
		for i := range bands {
			weights.Set(centreBin[0], i, 0)
		}
	}

	return &MelFilterbank{params: params, nfft: nfft, weights: weights}, nil
}

// Weights returns the (nfft/2+1, bands) filter matrix. It must not be modified.
func (fb *MelFilterbank) Weights() mat.Matrix {
	return fb.weights
}

// NFFT returns the FFT length the filterbank was built for
func (fb *MelFilterbank) NFFT() int {
	return fb.nfft
}

// NumBands returns the number of filters
func (fb *MelFilterbank) NumBands() int {
	_, bands := fb.weights.Dims()
	return bands
}

// Params returns the parameters with defaults resolved
func (fb *MelFilterbank) Params() MelFilterbankParams {
	return fb.params
}
