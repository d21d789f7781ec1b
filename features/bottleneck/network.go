package bottleneck

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SpliceOffsets are the frame offsets of the stage 1 bottleneck outputs
// concatenated into each stage 2 input row
var SpliceOffsets = []int{0, 5, 10, 15, 20}

// spliceSpan is the number of frames consumed by a splice beyond the first
func spliceSpan() int {
	return SpliceOffsets[len(SpliceOffsets)-1]
}

// Network evaluates the two-stage bottleneck network of a weight bundle.
// It holds no mutable state and is safe for concurrent use.
type Network struct {
	bundle *WeightBundle
}

// NewNetwork wraps a parsed bundle
func NewNetwork(bundle *WeightBundle) (*Network, error) {
	if bundle == nil || len(bundle.Stage1) == 0 || len(bundle.Stage2) == 0 {
		return nil, fmt.Errorf("network: bundle has no layers")
	}
	return &Network{bundle: bundle}, nil
}

// Bundle returns the weights the network evaluates
func (n *Network) Bundle() *WeightBundle {
	return n.bundle
}

// Forward maps (T x InputDim) rows to (T-20 x OutputDim) features. The
// second result is the stage 1 bottleneck output, one row per input row.
func (n *Network) Forward(x mat.Matrix) (out, bottleneck *mat.Dense, err error) {
	rows, cols := x.Dims()
	if cols != n.bundle.InputDim() {
		return nil, nil, fmt.Errorf("network: input width %d, want %d", cols, n.bundle.InputDim())
	}
	if rows <= spliceSpan() {
		return nil, nil, fmt.Errorf("network: %d frames cannot be spliced, need more than %d", rows, spliceSpan())
	}

	y := mat.DenseCopyOf(x)
	normalise(y, n.bundle.InputMean, n.bundle.InputStd)
	bottleneck = forwardStage(y, n.bundle.Stage1)

	spliced := splice(bottleneck, SpliceOffsets)
	normalise(spliced, n.bundle.BNMean, n.bundle.BNStd)
	out = forwardStage(spliced, n.bundle.Stage2)
	return out, bottleneck, nil
}

// normalise computes (m + shift) * scale column-wise in place
func normalise(m *mat.Dense, shift, scale []float64) {
	rows, _ := m.Dims()
	for r := range rows {
		row := m.RawRowView(r)
		for c := range row {
			row[c] = (row[c] + shift[c]) * scale[c]
		}
	}
}

func forwardStage(x *mat.Dense, layers []Layer) *mat.Dense {
	for _, layer := range layers {
		x = layer.apply(x)
	}
	return x
}

func (l Layer) apply(x mat.Matrix) *mat.Dense {
	var y mat.Dense
	y.Mul(x, l.Weights)
	rows, _ := y.Dims()
	for r := range rows {
		row := y.RawRowView(r)
		for c := range row {
			v := row[c] + l.Bias[c]
			if l.Activation == Sigmoid {
				v = 1 / (1 + math.Exp(-v))
			}
			row[c] = v
		}
	}
	return &y
}

// splice concatenates rows t+offsets[0], t+offsets[1], ... into row t
func splice(m *mat.Dense, offsets []int) *mat.Dense {
	rows, cols := m.Dims()
	span := offsets[len(offsets)-1]
	out := mat.NewDense(rows-span, cols*len(offsets), nil)
	for t := range rows - span {
		row := out.RawRowView(t)
		for i, off := range offsets {
			copy(row[i*cols:(i+1)*cols], m.RawRowView(t+off))
		}
	}
	return out
}
