package common

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrZeroVariance is returned when data cannot be scaled to unit variance
// because all its values are (numerically) identical.
var ErrZeroVariance = errors.New("zero variance: data is constant")

// zeroVarianceTolerance is the spread, relative to the magnitude of the mean,
// under which data is considered constant.
const zeroVarianceTolerance = 1e-10

// ZScoreInPlace normalises data to zero mean and unit population variance
// and returns the mean and standard deviation it removed. Constant or
// non-finite data is left untouched and ErrZeroVariance is returned.
func ZScoreInPlace(data []float64) (mean, std float64, err error) {
	if len(data) == 0 {
		return 0, 0, ErrZeroVariance
	}

	mean, variance := stat.PopMeanVariance(data, nil)
	std = math.Sqrt(variance)
	if math.IsNaN(std) || math.IsInf(std, 0) || std <= zeroVarianceTolerance*math.Max(1, math.Abs(mean)) {
		return mean, std, ErrZeroVariance
	}

	for i, v := range data {
		data[i] = (v - mean) / std
	}
	return mean, std, nil
}
