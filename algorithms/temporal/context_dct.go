package temporal

import (
	"fmt"
	"math"

	"github.com/beyondboy/shennong/algorithms/common"
	"github.com/beyondboy/shennong/algorithms/windowing"
	"gonum.org/v1/gonum/mat"
)

// DCTOrder is the number of cosine coefficients kept per band
const DCTOrder = 6

// ContextDCT compresses a window of 2*radius+1 consecutive frames into
// DCTOrder Hamming weighted cosine coefficients per band.
type ContextDCT struct {
	radius int
	// basis is (length x DCTOrder), window already applied
	basis *mat.Dense
}

// NewContextDCT creates an encoder for windows of 2*radius+1 frames.
func NewContextDCT(radius int) (*ContextDCT, error) {
	if radius < 0 {
		return nil, fmt.Errorf("context radius must be non-negative, got %d", radius)
	}
	length := 2*radius + 1
	ham := windowing.NewHamming(length, true).Coefficients()

	scale := math.Sqrt(2 / float64(length))
	basis := mat.NewDense(length, DCTOrder, nil)
	for n := range length {
		basis.Set(n, 0, scale*ham[n])
		for k := 1; k < DCTOrder; k++ {
			angle := math.Pi * float64(k) * float64(2*n+1) / float64(2*length)
			basis.Set(n, k, scale*math.Cos(angle)*ham[n])
		}
	}

	return &ContextDCT{radius: radius, basis: basis}, nil
}

// Radius returns the number of context frames on each side
func (d *ContextDCT) Radius() int {
	return d.radius
}

// Length returns the context window length 2*radius+1
func (d *ContextDCT) Length() int {
	return 2*d.radius + 1
}

// OutputDim returns the encoded width for the given number of bands
func (d *ContextDCT) OutputDim(bands int) int {
	return bands * DCTOrder
}

// Encode maps (frames x bands) input to (frames-2*radius x bands*DCTOrder)
// output. Column b*DCTOrder+k holds coefficient k of band b.
func (d *ContextDCT) Encode(frames mat.Matrix) (*mat.Dense, error) {
	windows, err := common.FrameRows(frames, d.Length(), 1)
	if err != nil {
		return nil, err
	}
	_, bands := frames.Dims()

	out := mat.NewDense(len(windows), d.OutputDim(bands), nil)
	var coeffs mat.Dense
	for p, window := range windows {
		// (bands x length) . (length x order)
		coeffs.Mul(window.T(), d.basis)
		row := out.RawRowView(p)
		for b := range bands {
			copy(row[b*DCTOrder:(b+1)*DCTOrder], coeffs.RawRowView(b))
		}
	}
	return out, nil
}
