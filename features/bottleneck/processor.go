package bottleneck

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/beyondboy/shennong/algorithms/common"
	"github.com/beyondboy/shennong/algorithms/spectral"
	"github.com/beyondboy/shennong/algorithms/speech"
	"github.com/beyondboy/shennong/algorithms/temporal"
	"github.com/beyondboy/shennong/audio"
	"github.com/beyondboy/shennong/features"
	"github.com/beyondboy/shennong/logging"
)

// front end configuration the pretrained networks were trained with
const (
	SampleRate   = 8000
	FrameLength  = 200
	FrameOverlap = 120
	NumBands     = 24
	LowFreq      = 64.0
	HighFreq     = 3800.0
	// ContextPadding is the number of copies of the first and last frames
	// added on each side before context encoding
	ContextPadding = 15
)

const timingTolerance = 1e-9

// ProcessorParams holds the tunable parts of the extraction
type ProcessorParams struct {
	// DitherLevel scales the uniform noise added to the resampled signal
	DitherLevel float64
	// DitherSeed seeds the dither noise of every call; 0 draws a new seed
	// from the clock on each call
	DitherSeed int64
}

// DefaultProcessorParams returns the parameters of the pretrained setup
func DefaultProcessorParams() ProcessorParams {
	return ProcessorParams{DitherLevel: 0.1}
}

// Option configures a Processor
type Option func(*Processor)

// WithLogger sets the logger used by the processor and its VAD
func WithLogger(logger logging.Logger) Option {
	return func(p *Processor) {
		p.logger = logging.OrNoOp(logger)
	}
}

// WithMetrics records every Process call in m
func WithMetrics(m *Metrics) Option {
	return func(p *Processor) {
		p.metrics = m
	}
}

// Processor extracts bottleneck features from mono speech. It is immutable
// once built and safe for concurrent use.
type Processor struct {
	bundle   *WeightBundle
	params   ProcessorParams
	frontend *spectral.LogMelFrontend
	vad      *speech.EnergyVAD
	dct      *temporal.ContextDCT
	network  *Network
	logger   logging.Logger
	metrics  *Metrics
}

var _ features.Extractor = (*Processor)(nil)

// NewProcessor builds the extraction pipeline around a weight bundle
func NewProcessor(bundle *WeightBundle, params ProcessorParams, opts ...Option) (*Processor, error) {
	if bundle == nil {
		return nil, fmt.Errorf("processor: nil weight bundle")
	}
	if params.DitherLevel < 0 || math.IsNaN(params.DitherLevel) {
		return nil, fmt.Errorf("processor: invalid dither level %g", params.DitherLevel)
	}

	p := &Processor{bundle: bundle, params: params, logger: &logging.NoOpLogger{}}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithFields(logging.Fields{"component": "bottleneck", "weights": bundle.Name})

	fb, err := spectral.NewMelFilterbank(spectral.MelFilterbankParams{
		WindowLength: FrameLength,
		SampleRate:   SampleRate,
		NumBands:     NumBands,
		LowFreq:      LowFreq,
		HighFreq:     HighFreq,
	})
	if err != nil {
		return nil, fmt.Errorf("processor: %w", err)
	}
	if p.frontend, err = spectral.NewLogMelFrontend(FrameLength, FrameOverlap, fb); err != nil {
		return nil, fmt.Errorf("processor: %w", err)
	}

	vadParams := speech.DefaultVADParams()
	vadParams.WindowLength = FrameLength
	vadParams.Overlap = FrameOverlap
	if p.vad, err = speech.NewEnergyVAD(vadParams, p.logger); err != nil {
		return nil, fmt.Errorf("processor: %w", err)
	}

	if p.dct, err = temporal.NewContextDCT(bundle.Context); err != nil {
		return nil, fmt.Errorf("processor: %w", err)
	}
	if want := p.dct.OutputDim(NumBands); bundle.InputDim() != want {
		return nil, &InvalidWeightBundleError{
			Key:     "W1",
			Message: fmt.Sprintf("network input width %d, front end produces %d", bundle.InputDim(), want),
		}
	}
	if p.network, err = NewNetwork(bundle); err != nil {
		return nil, fmt.Errorf("processor: %w", err)
	}

	p.logger.Debug("processor ready", logging.Fields{
		"context": bundle.Context,
		"layers":  bundle.LayerKeys(),
	})
	return p, nil
}

// Parameters returns the properties attached to extracted features
func (p *Processor) Parameters() map[string]any {
	return map[string]any{"weights": p.bundle.Name}
}

// Params returns the processor parameters
func (p *Processor) Params() ProcessorParams {
	return p.params
}

func (p *Processor) rng() *rand.Rand {
	seed := p.params.DitherSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func stageError(stage string, err error) error {
	return fmt.Errorf("bottleneck %s: %w", stage, err)
}

// Process extracts (frames x 80) bottleneck features from a mono signal,
// one frame every 15 ms. It returns a *NoVoiceDetectedError when the
// signal holds no speech.
func (p *Processor) Process(signal *audio.Signal) (result *features.Features, err error) {
	start := time.Now()
	var duration float64
	defer func() {
		frames := 0
		if result != nil {
			frames = result.NumFrames()
		}
		p.metrics.observe(start, duration, frames, err)
	}()

	if signal == nil {
		return nil, stageError("load", fmt.Errorf("nil signal"))
	}
	if signal.Channels() != 1 {
		return nil, stageError("load", fmt.Errorf("signal must be mono, it has %d channels", signal.Channels()))
	}
	duration = signal.Duration()
	logger := p.logger.WithFields(logging.Fields{"duration": duration})

	resampled, err := signal.Resample(SampleRate)
	if err != nil {
		return nil, stageError("resample", err)
	}
	logger.Debug("signal resampled", logging.Fields{"stage": "resampled", "samples": resampled.NumFrames()})

	if signal.IsSilent() {
		total, _ := common.NumFrames(resampled.NumFrames(), FrameLength, FrameLength-FrameOverlap)
		return nil, &NoVoiceDetectedError{Total: total}
	}
	samples := resampled.Dither(p.params.DitherLevel, p.rng()).Samples()

	fbank, err := p.frontend.Compute(samples)
	if err != nil {
		return nil, stageError("frontend", err)
	}
	numFrames, _ := fbank.Dims()
	logger.Debug("filterbank computed", logging.Fields{"stage": "front_ended", "frames": numFrames})

	mask, err := p.vad.Detect(samples)
	if err != nil {
		return nil, stageError("vad", err)
	}
	if len(mask) != numFrames {
		return nil, stageError("vad", fmt.Errorf("%d decisions for %d frames", len(mask), numFrames))
	}
	voiced := mask.Count()
	if voiced == 0 {
		return nil, &NoVoiceDetectedError{Total: len(mask)}
	}
	logger.Info("speech detected", logging.Fields{"stage": "voice_detected", "voiced": voiced, "frames": len(mask)})

	mean, _ := common.MaskedColumnMean(fbank, mask)
	common.SubtractRowVector(fbank, mean)
	padded := common.PadEdges(fbank, ContextPadding, ContextPadding)
	logger.Debug("filterbank normalized", logging.Fields{"stage": "normalized"})

	encoded, err := p.dct.Encode(padded)
	if err != nil {
		return nil, stageError("encode", err)
	}
	logger.Debug("context encoded", logging.Fields{"stage": "encoded"})

	output, _, err := p.network.Forward(encoded)
	if err != nil {
		return nil, stageError("network", err)
	}
	rows, _ := output.Dims()
	logger.Debug("network evaluated", logging.Fields{"stage": "evaluated", "rows": rows})

	times, err := timestamps(rows, duration)
	if err != nil {
		return nil, stageError("timestamps", err)
	}
	logger.Debug("timestamps computed", logging.Fields{"stage": "timestamped"})

	result, err = features.New(output, times, p.Parameters())
	if err != nil {
		return nil, stageError("timestamps", err)
	}
	return result, nil
}

// timestamps returns the frame centres of rows frames spread over duration
// seconds, checking that the last two frames bracket the end of the signal.
func timestamps(rows int, duration float64) ([]float64, error) {
	if rows < 2 || duration <= 0 {
		return nil, fmt.Errorf("cannot timestamp %d frames over %gs", rows, duration)
	}
	frames := features.Frames{
		SampleRate:  float64(rows) / duration,
		FrameShift:  float64(FrameOverlap) / SampleRate,
		FrameLength: float64(FrameLength) / SampleRate,
	}
	times, err := frames.Times(rows)
	if err != nil {
		return nil, err
	}

	secondToLast, last := times[rows-2], times[rows-1]
	if secondToLast > duration+timingTolerance || duration > last+timingTolerance {
		return nil, &TimingError{Duration: duration, SecondToLast: secondToLast, Last: last}
	}
	return times, nil
}
