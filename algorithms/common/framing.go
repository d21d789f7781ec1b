package common

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// InvalidWindowError reports framing parameters that are inconsistent with
// the length of the input.
type InvalidWindowError struct {
	Length int
	Window int
	Shift  int
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("invalid window: cannot frame %d samples with window %d and shift %d",
		e.Length, e.Window, e.Shift)
}

// NumFrames returns floor((n-window)/shift)+1, the number of complete
// windows of length window taken every shift samples over n samples.
func NumFrames(n, window, shift int) (int, error) {
	if window < 1 || shift < 1 || window > n {
		return 0, &InvalidWindowError{Length: n, Window: window, Shift: shift}
	}
	return (n-window)/shift + 1, nil
}

// Frame splits x into overlapping frames of window samples taken every shift
// samples. Row i of the result holds x[i*shift : i*shift+window]. The samples
// are copied once, so callers may modify the rows in place.
func Frame(x []float64, window, shift int) (*mat.Dense, error) {
	numFrames, err := NumFrames(len(x), window, shift)
	if err != nil {
		return nil, err
	}

	data := make([]float64, numFrames*window)
	for i := range numFrames {
		copy(data[i*window:(i+1)*window], x[i*shift:i*shift+window])
	}
	return mat.NewDense(numFrames, window, data), nil
}

// FrameRows applies the framing contract along the rows (time axis) of m:
// element i is the window x window-columns block made of rows
// [i*shift, i*shift+window).
func FrameRows(m mat.Matrix, window, shift int) ([]*mat.Dense, error) {
	rows, cols := m.Dims()
	numFrames, err := NumFrames(rows, window, shift)
	if err != nil {
		return nil, err
	}

	frames := make([]*mat.Dense, numFrames)
	for i := range numFrames {
		block := mat.NewDense(window, cols, nil)
		for r := range window {
			for c := range cols {
				block.Set(r, c, m.At(i*shift+r, c))
			}
		}
		frames[i] = block
	}
	return frames, nil
}

// PadEdges returns m with its first row repeated left times above it and its
// last row repeated right times below it.
func PadEdges(m mat.Matrix, left, right int) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows+left+right, cols, nil)
	for r := range rows + left + right {
		src := r - left
		if src < 0 {
			src = 0
		}
		if src >= rows {
			src = rows - 1
		}
		for c := range cols {
			out.Set(r, c, m.At(src, c))
		}
	}
	return out
}
