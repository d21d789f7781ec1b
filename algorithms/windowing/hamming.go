package windowing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Hamming represents a Hamming window function
type Hamming struct {
	size         int
	symmetric    bool
	coefficients []float64
}

// NewHamming creates a new Hamming window. A symmetric window has equal first
// and last coefficients (0.08), which is the analysis form used for
// filterbank front ends and the context DCT.
func NewHamming(size int, symmetric bool) *Hamming {
	h := &Hamming{
		size:      size,
		symmetric: symmetric,
	}
	h.generate()
	return h
}

func (h *Hamming) generate() {
	h.coefficients = make([]float64, h.size)
	if h.size == 1 {
		h.coefficients[0] = 1
		return
	}

	denominator := float64(h.size)
	if h.symmetric {
		denominator = float64(h.size - 1)
	}

	for i := range h.size {
		h.coefficients[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/denominator)
	}
}

// ApplyRows multiplies every row of frames by the window in place.
func (h *Hamming) ApplyRows(frames *mat.Dense) error {
	rows, cols := frames.Dims()
	if cols != h.size {
		return fmt.Errorf("frame length (%d) doesn't match window size (%d)", cols, h.size)
	}
	for r := range rows {
		floats.Mul(frames.RawRowView(r), h.coefficients)
	}
	return nil
}

// Coefficients returns a copy of the window coefficients
func (h *Hamming) Coefficients() []float64 {
	coeffs := make([]float64, len(h.coefficients))
	copy(coeffs, h.coefficients)
	return coeffs
}
