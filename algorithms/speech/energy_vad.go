package speech

import (
	"errors"
	"fmt"

	"github.com/beyondboy/shennong/algorithms/common"
	"github.com/beyondboy/shennong/algorithms/stats"
	"github.com/beyondboy/shennong/algorithms/temporal"
	"github.com/beyondboy/shennong/logging"
	"gonum.org/v1/gonum/mat"
)

// Mask holds one voice activity decision per frame
type Mask []bool

// Count returns the number of voiced frames
func (m Mask) Count() int {
	n := 0
	for _, voiced := range m {
		if voiced {
			n++
		}
	}
	return n
}

// VADParams holds parameters for energy based voice activity detection
type VADParams struct {
	WindowLength int
	Overlap      int
	// Iterations is the number of EM rounds run on the frame energies
	Iterations int
	// Threshold on the posterior of the lowest energy component under
	// which a frame is voiced
	Threshold float64
}

// DefaultVADParams returns the parameters used for 8 kHz speech
func DefaultVADParams() VADParams {
	return VADParams{
		WindowLength: 200,
		Overlap:      120,
		Iterations:   5,
		Threshold:    0.3,
	}
}

// EnergyVAD labels frames as voiced by fitting a 3-component GMM to their
// normalised frame energies. Component 0 is initialised at the lowest
// energy and is assumed to stay the silence class.
type EnergyVAD struct {
	params VADParams
	energy *temporal.Energy
	logger logging.Logger
}

// NewEnergyVAD creates a detector. A nil logger discards messages.
func NewEnergyVAD(params VADParams, logger logging.Logger) (*EnergyVAD, error) {
	if params.WindowLength < 1 || params.Overlap < 0 || params.Overlap >= params.WindowLength {
		return nil, fmt.Errorf("invalid vad window %d with overlap %d", params.WindowLength, params.Overlap)
	}
	if params.Iterations < 0 {
		return nil, fmt.Errorf("invalid vad iterations %d", params.Iterations)
	}

	return &EnergyVAD{
		params: params,
		energy: temporal.NewEnergy(params.WindowLength, params.WindowLength-params.Overlap),
		logger: logging.OrNoOp(logger).WithFields(logging.Fields{"component": "energy_vad"}),
	}, nil
}

// Params returns the detector parameters
func (v *EnergyVAD) Params() VADParams {
	return v.params
}

func initialModel() stats.Params {
	third := 1.0 / 3
	return stats.Params{
		Weights:     []float64{third, third, third},
		Means:       mat.NewDense(3, 1, []float64{-1, 0, 1}),
		Covariances: mat.NewDense(3, 1, []float64{1, 1, 1}),
	}
}

// Detect returns one decision per frame of signal. A constant energy
// signal is reported as silence with a warning. When the mixture
// degenerates after the first iteration the last well conditioned model
// classifies the frames; earlier numerical failures are returned as errors.
func (v *EnergyVAD) Detect(signal []float64) (Mask, error) {
	energies, err := v.energy.ComputeShortTimeEnergy(signal)
	if err != nil {
		return nil, err
	}

	if _, _, err := common.ZScoreInPlace(energies); err != nil {
		if errors.Is(err, common.ErrZeroVariance) {
			v.logger.Warn("signal contains only silence", logging.Fields{"frames": len(energies)})
			return make(Mask, len(energies)), nil
		}
		return nil, err
	}

	data := mat.NewDense(len(energies), 1, energies)
	model, err := stats.Prepare(initialModel())
	if err != nil {
		return nil, err
	}

	for i := range v.params.Iterations {
		eval, err := model.Evaluate(data, 2)
		if err != nil {
			return nil, err
		}
		params, err := stats.Update(eval.Stats)
		if err != nil {
			return nil, err
		}
		next, err := stats.Prepare(params)
		if err != nil {
			// exact digital silence drives a variance to zero or just below
			var npd *stats.NonPositiveDefiniteError
			if i > 0 && errors.As(err, &npd) {
				v.logger.Warn("vad mixture degenerated, keeping previous model", logging.Fields{
					"iteration": i + 1,
					"error":     err.Error(),
				})
				break
			}
			return nil, fmt.Errorf("vad iteration %d: %w", i+1, err)
		}
		model = next
		v.logger.Debug("vad iteration", logging.Fields{"iteration": i + 1, "llh": eval.Total()})
	}

	posteriors, err := model.Posteriors(data)
	if err != nil {
		return nil, err
	}

	mask := make(Mask, len(energies))
	for t := range mask {
		mask[t] = posteriors.At(t, 0) < v.params.Threshold
	}
	v.logger.Debug("vad done", logging.Fields{"frames": len(mask), "voiced": mask.Count()})
	return mask, nil
}
