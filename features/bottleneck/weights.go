package bottleneck

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strings"

	"github.com/beyondboy/shennong/internal/npzio"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

// DefaultBottleneckPosition is the number of sigmoid layers before the
// first stage bottleneck when a bundle does not say otherwise.
const DefaultBottleneckPosition = 2

// bundle keys other than the W<i>/b<i> layer arrays
const (
	keyContext   = "context"
	keyInputMean = "input_mean"
	keyInputStd  = "input_std"
	keyBNMean    = "bn_mean"
	keyBNStd     = "bn_std"
	keyBNPos     = "bn_position"
)

var requiredKeys = []string{keyContext, keyInputMean, keyInputStd, keyBNMean, keyBNStd}

// Activation is the non-linearity applied after an affine layer
type Activation int

const (
	Sigmoid Activation = iota
	Linear
)

func (a Activation) String() string {
	switch a {
	case Sigmoid:
		return "sigmoid"
	case Linear:
		return "linear"
	default:
		return "unknown"
	}
}

// Layer is an affine transform y = x.W + b followed by an activation
type Layer struct {
	// Index is the suffix of the W<i>/b<i> arrays
	Index      int
	Weights    *mat.Dense
	Bias       []float64
	Activation Activation
}

// InputDim returns the width of the layer input
func (l Layer) InputDim() int {
	rows, _ := l.Weights.Dims()
	return rows
}

// OutputDim returns the width of the layer output
func (l Layer) OutputDim() int {
	_, cols := l.Weights.Dims()
	return cols
}

// WeightBundle is a pretrained two-stage bottleneck network. It is
// immutable once built.
type WeightBundle struct {
	Name string
	// Context is the radius of the DCT context window
	Context            int
	BottleneckPosition int
	InputMean          []float64
	InputStd           []float64
	BNMean             []float64
	BNStd              []float64
	Stage1             []Layer
	Stage2             []Layer
}

// InputDim returns the expected input feature width
func (b *WeightBundle) InputDim() int {
	return b.Stage1[0].InputDim()
}

// BottleneckDim returns the width of the first stage bottleneck
func (b *WeightBundle) BottleneckDim() int {
	return b.Stage1[len(b.Stage1)-1].OutputDim()
}

// OutputDim returns the width of the extracted features
func (b *WeightBundle) OutputDim() int {
	return b.Stage2[len(b.Stage2)-1].OutputDim()
}

func invalid(key, format string, args ...any) error {
	return &InvalidWeightBundleError{Key: key, Message: fmt.Sprintf(format, args...)}
}

func asInteger(key string, m *mat.Dense) (int, error) {
	r, c := m.Dims()
	if r*c != 1 {
		return 0, invalid(key, "want a scalar, got shape %dx%d", r, c)
	}
	v := m.At(0, 0)
	if v != math.Trunc(v) || v < 0 {
		return 0, invalid(key, "want a non-negative integer, got %g", v)
	}
	return int(v), nil
}

func asVector(key string, m *mat.Dense) ([]float64, error) {
	r, c := m.Dims()
	if r != 1 && c != 1 {
		return nil, invalid(key, "want a vector, got shape %dx%d", r, c)
	}
	if r == 1 {
		return mat.Row(nil, 0, m), nil
	}
	return mat.Col(nil, 0, m), nil
}

// NewWeightBundle parses named arrays into a bundle. Vectors and scalars are
// given as single-row matrices. The number of layers is (len(arrays)-5)/2
// rounded down, not counting the optional bn_position entry; the first stage uses W1 up
// to W<bn+1> and the second stage W<bn+3> up to W<layers+1>.
func NewWeightBundle(name string, arrays map[string]*mat.Dense) (*WeightBundle, error) {
	for _, key := range requiredKeys {
		if arrays[key] == nil {
			return nil, invalid(key, "missing array")
		}
	}

	b := &WeightBundle{Name: name, BottleneckPosition: DefaultBottleneckPosition}
	var err error
	if b.Context, err = asInteger(keyContext, arrays[keyContext]); err != nil {
		return nil, err
	}

	count := len(arrays)
	if pos, ok := arrays[keyBNPos]; ok {
		if b.BottleneckPosition, err = asInteger(keyBNPos, pos); err != nil {
			return nil, err
		}
		count--
	}
	// an unpaired extra array rounds down and is never read
	numLayers := (count - len(requiredKeys)) / 2
	bn := b.BottleneckPosition
	if numLayers < bn+2 {
		return nil, invalid("", "%d layers cannot hold %d hidden layers, a bottleneck and an output layer", numLayers, bn)
	}

	for _, vec := range []struct {
		key string
		dst *[]float64
	}{
		{keyInputMean, &b.InputMean},
		{keyInputStd, &b.InputStd},
		{keyBNMean, &b.BNMean},
		{keyBNStd, &b.BNStd},
	} {
		if *vec.dst, err = asVector(vec.key, arrays[vec.key]); err != nil {
			return nil, err
		}
	}

	if b.Stage1, err = parseLayers(arrays, 1, bn+1); err != nil {
		return nil, err
	}
	if b.Stage2, err = parseLayers(arrays, bn+3, numLayers+1); err != nil {
		return nil, err
	}
	if err := b.checkShapes(); err != nil {
		return nil, err
	}
	return b, nil
}

// parseLayers reads W<first>..W<last>; all but the last are sigmoid.
func parseLayers(arrays map[string]*mat.Dense, first, last int) ([]Layer, error) {
	layers := make([]Layer, 0, last-first+1)
	for i := first; i <= last; i++ {
		wKey, bKey := fmt.Sprintf("W%d", i), fmt.Sprintf("b%d", i)
		w, ok := arrays[wKey]
		if !ok || w == nil {
			return nil, invalid(wKey, "missing array")
		}
		bias, ok := arrays[bKey]
		if !ok || bias == nil {
			return nil, invalid(bKey, "missing array")
		}
		vec, err := asVector(bKey, bias)
		if err != nil {
			return nil, err
		}

		layer := Layer{Index: i, Weights: mat.DenseCopyOf(w), Bias: vec, Activation: Sigmoid}
		if len(vec) != layer.OutputDim() {
			return nil, invalid(bKey, "bias of width %d for %s of width %d", len(vec), wKey, layer.OutputDim())
		}
		if i == last {
			layer.Activation = Linear
		}
		layers = append(layers, layer)
	}
	return layers, nil
}

func checkChain(layers []Layer) error {
	for i := 1; i < len(layers); i++ {
		prev, cur := layers[i-1], layers[i]
		if prev.OutputDim() != cur.InputDim() {
			return invalid(fmt.Sprintf("W%d", cur.Index), "input width %d does not match W%d output width %d",
				cur.InputDim(), prev.Index, prev.OutputDim())
		}
	}
	return nil
}

func (b *WeightBundle) checkShapes() error {
	if err := checkChain(b.Stage1); err != nil {
		return err
	}
	if err := checkChain(b.Stage2); err != nil {
		return err
	}
	in := b.InputDim()
	if len(b.InputMean) != in || len(b.InputStd) != in {
		return invalid(keyInputMean, "input normalisation of width %d/%d for network input %d",
			len(b.InputMean), len(b.InputStd), in)
	}
	spliced := len(SpliceOffsets) * b.BottleneckDim()
	if len(b.BNMean) != spliced || len(b.BNStd) != spliced {
		return invalid(keyBNMean, "bottleneck normalisation of width %d/%d for spliced width %d",
			len(b.BNMean), len(b.BNStd), spliced)
	}
	if s2 := b.Stage2[0].InputDim(); s2 != spliced {
		return invalid(fmt.Sprintf("W%d", b.Stage2[0].Index), "input width %d does not match spliced width %d", s2, spliced)
	}
	return nil
}

// LoadWeightBundle reads a bundle from a .npz archive. The bundle is named
// after the file unless name is given.
func LoadWeightBundle(path, name string) (bundle *WeightBundle, err error) {
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	archive, err := npzio.Open(path)
	if err != nil {
		return nil, &InvalidWeightBundleError{Path: path, Message: "cannot open archive", Cause: err}
	}
	defer func() {
		err = multierr.Append(err, archive.Close())
	}()

	arrays := make(map[string]*mat.Dense, len(archive.Keys()))
	for _, key := range archive.Keys() {
		m, err := archive.Matrix(key)
		if err != nil {
			if key == keyContext || key == keyBNPos {
				// scalars may be stored as 0-d arrays
				v, serr := archive.Scalar(key)
				if serr != nil {
					return nil, &InvalidWeightBundleError{Path: path, Key: key, Message: "unreadable array", Cause: serr}
				}
				m = mat.NewDense(1, 1, []float64{v})
			} else {
				return nil, &InvalidWeightBundleError{Path: path, Key: key, Message: "unreadable array", Cause: err}
			}
		}
		arrays[key] = m
	}

	bundle, err = NewWeightBundle(name, arrays)
	if err != nil {
		var ierr *InvalidWeightBundleError
		if errors.As(err, &ierr) {
			ierr.Path = path
		}
		return nil, err
	}
	return bundle, nil
}

// LayerKeys returns the W<i> keys used by the bundle, in evaluation order
func (b *WeightBundle) LayerKeys() []string {
	keys := make([]string, 0, len(b.Stage1)+len(b.Stage2))
	for _, l := range slices.Concat(b.Stage1, b.Stage2) {
		keys = append(keys, fmt.Sprintf("W%d", l.Index))
	}
	return keys
}
