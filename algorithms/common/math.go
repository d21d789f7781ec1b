package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SumRows returns the sum of every row of m.
func SumRows(m mat.Matrix) []float64 {
	rows, cols := m.Dims()
	sums := make([]float64, rows)
	row := make([]float64, cols)
	for r := range rows {
		mat.Row(row, r, m)
		sums[r] = floats.Sum(row)
	}
	return sums
}

// MaskedColumnMean returns the mean of the rows of m selected by mask. It
// returns false when no row is selected.
func MaskedColumnMean(m mat.Matrix, mask []bool) ([]float64, bool) {
	rows, cols := m.Dims()
	mean := make([]float64, cols)
	row := make([]float64, cols)
	count := 0
	for r := 0; r < rows && r < len(mask); r++ {
		if !mask[r] {
			continue
		}
		mat.Row(row, r, m)
		floats.Add(mean, row)
		count++
	}
	if count == 0 {
		return nil, false
	}
	floats.Scale(1/float64(count), mean)
	return mean, true
}

// SubtractRowVector subtracts v from every row of m in place.
func SubtractRowVector(m *mat.Dense, v []float64) {
	rows, _ := m.Dims()
	for r := range rows {
		floats.Sub(m.RawRowView(r), v)
	}
}

// AllFinite reports whether every value is neither NaN nor infinite.
func AllFinite(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
