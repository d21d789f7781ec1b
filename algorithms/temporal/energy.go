package temporal

import (
	"github.com/beyondboy/shennong/algorithms/common"
)

// Energy computes frame energies of a signal
type Energy struct {
	frameSize int
	hopSize   int
}

// NewEnergy creates a new energy calculator
func NewEnergy(frameSize, hopSize int) *Energy {
	return &Energy{
		frameSize: frameSize,
		hopSize:   hopSize,
	}
}

// ComputeShortTimeEnergy returns the sum of squared samples of every
// frame. Samples are squared as float64, so 16-bit PCM values never wrap.
func (e *Energy) ComputeShortTimeEnergy(signal []float64) ([]float64, error) {
	squared := make([]float64, len(signal))
	for i, v := range signal {
		squared[i] = v * v
	}

	frames, err := common.Frame(squared, e.frameSize, e.hopSize)
	if err != nil {
		return nil, err
	}
	return common.SumRows(frames), nil
}
