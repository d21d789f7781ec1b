package spectral

import (
	"fmt"

	"github.com/mjibson/go-dsp/fft"
)

// FFT computes zero-padded real transforms of a fixed length
type FFT struct {
	size   int
	padded []float64
}

// NewFFT creates a new FFT calculator of the given length. An FFT keeps a
// scratch buffer and must not be shared between goroutines.
func NewFFT(size int) *FFT {
	return &FFT{size: size, padded: make([]float64, size)}
}

// Size returns the transform length
func (f *FFT) Size() int {
	return f.size
}

// PowerSpectrum writes re^2+im^2 of bins 0..size/2 of the zero-padded frame
// into dst, which must hold size/2+1 values.
func (f *FFT) PowerSpectrum(dst, frame []float64) error {
	if len(frame) > f.size {
		return fmt.Errorf("frame length (%d) exceeds FFT size (%d)", len(frame), f.size)
	}
	if len(dst) != f.size/2+1 {
		return fmt.Errorf("power spectrum buffer holds %d bins, need %d", len(dst), f.size/2+1)
	}

	copy(f.padded, frame)
	clear(f.padded[len(frame):])

	spectrum := fft.FFTReal(f.padded)
	for k := range dst {
		re, im := real(spectrum[k]), imag(spectrum[k])
		dst[k] = re*re + im*im
	}
	return nil
}
