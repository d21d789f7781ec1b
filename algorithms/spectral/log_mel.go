package spectral

import (
	"fmt"
	"math"

	"github.com/beyondboy/shennong/algorithms/common"
	"github.com/beyondboy/shennong/algorithms/windowing"
	"gonum.org/v1/gonum/mat"
)

// LogMelFrontend computes log mel filterbank energies of a signal
type LogMelFrontend struct {
	window     int
	overlap    int
	filterbank *MelFilterbank
	hamming    *windowing.Hamming
}

// NewLogMelFrontend creates a front end with windows of window samples
// overlapping by overlap samples. The filterbank must have been built for
// the same FFT size.
func NewLogMelFrontend(window, overlap int, fb *MelFilterbank) (*LogMelFrontend, error) {
	if window < 1 || overlap < 0 || overlap >= window {
		return nil, fmt.Errorf("invalid front end: window %d, overlap %d", window, overlap)
	}
	if fb == nil {
		return nil, fmt.Errorf("invalid front end: nil filterbank")
	}
	if nfft := common.NextPowerOfTwo(window); nfft != fb.NFFT() {
		return nil, fmt.Errorf("invalid front end: window %d needs FFT size %d, filterbank has %d",
			window, nfft, fb.NFFT())
	}

	return &LogMelFrontend{
		window:     window,
		overlap:    overlap,
		filterbank: fb,
		hamming:    windowing.NewHamming(window, true),
	}, nil
}

// Shift returns the hop between frames in samples
func (lm *LogMelFrontend) Shift() int {
	return lm.window - lm.overlap
}

// Compute returns the (frames x bands) log filterbank energies of signal.
func (lm *LogMelFrontend) Compute(signal []float64) (*mat.Dense, error) {
	frames, err := common.Frame(signal, lm.window, lm.Shift())
	if err != nil {
		return nil, err
	}
	if err := lm.hamming.ApplyRows(frames); err != nil {
		return nil, err
	}

	numFrames, _ := frames.Dims()
	nfft := lm.filterbank.NFFT()
	transform := NewFFT(nfft)

	power := mat.NewDense(numFrames, nfft/2+1, nil)
	for r := range numFrames {
		if err := transform.PowerSpectrum(power.RawRowView(r), frames.RawRowView(r)); err != nil {
			return nil, err
		}
	}

	var energies mat.Dense
	energies.Mul(power, lm.filterbank.Weights())
	energies.Apply(func(_, _ int, v float64) float64 {
		return math.Log(math.Max(1.0, v))
	}, &energies)

	return &energies, nil
}
