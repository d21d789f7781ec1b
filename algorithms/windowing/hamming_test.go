package windowing

import (
	"testing"

	"github.com/mjibson/go-dsp/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestHamming_MatchesReference(t *testing.T) {
	for _, size := range []int{1, 11, 200} {
		got := NewHamming(size, true).Coefficients()
		want := window.Hamming(size)
		require.Len(t, got, size)
		assert.InDeltaSlice(t, want, got, 1e-12, "size %d", size)
	}
}

func TestHamming_Symmetric(t *testing.T) {
	h := NewHamming(200, true)
	c := h.Coefficients()
	assert.InDelta(t, 0.08, c[0], 1e-12)
	assert.InDelta(t, 0.08, c[199], 1e-12)
	for i := range 100 {
		assert.InDelta(t, c[i], c[199-i], 1e-12)
	}

	periodic := NewHamming(200, false).Coefficients()
	assert.InDelta(t, 1.0, periodic[100], 1e-12)
}

func TestHamming_ApplyRows(t *testing.T) {
	h := NewHamming(3, true)
	frames := mat.NewDense(2, 3, []float64{1, 1, 1, 2, 2, 2})
	require.NoError(t, h.ApplyRows(frames))
	assert.InDeltaSlice(t, []float64{0.16, 2, 0.16}, frames.RawRowView(1), 1e-12)

	assert.Error(t, h.ApplyRows(mat.NewDense(1, 4, nil)))
}
