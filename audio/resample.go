package audio

import (
	"fmt"
	"math"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"
	"gonum.org/v1/gonum/floats"
)

// Resample converts the signal to sampleRate. The output holds exactly
// int(frames*sampleRate/rate) frames per channel, time aligned with the
// input. Channels are resampled independently. Same rate returns the
// signal itself.
func (s *Signal) Resample(sampleRate int) (*Signal, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("target sample rate must be positive, got %d", sampleRate)
	}
	if sampleRate == s.sampleRate {
		return s, nil
	}

	shift, err := alignmentFor(s.sampleRate, sampleRate)
	if err != nil {
		return nil, err
	}

	frames := int(float64(s.NumFrames()) * float64(sampleRate) / float64(s.sampleRate))
	resampled := make([]float64, frames*s.channels)
	mono := make([]float64, s.NumFrames())
	for ch := range s.channels {
		for i := range mono {
			mono[i] = s.samples[i*s.channels+ch] / pcmScale
		}
		output, err := shift.apply(mono, s.sampleRate, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("resample error on channel %d: %w", ch, err)
		}
		for i := 0; i < frames && i < len(output); i++ {
			resampled[i*s.channels+ch] = clamp(output[i] * pcmScale)
		}
	}

	return &Signal{samples: resampled, sampleRate: sampleRate, channels: s.channels}, nil
}

func newResampler(from, to int) (resampling.Resampler, error) {
	resampler, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	return resampler, nil
}

// alignment moves the resampler output back in place: lead zeros are
// prepended to the input when the output comes out early, skip output
// samples are dropped when it comes out late.
type alignment struct {
	lead int
	skip int
}

func (a alignment) apply(mono []float64, from, to int) ([]float64, error) {
	resampler, err := newResampler(from, to)
	if err != nil {
		return nil, err
	}
	// a second of silence pushes the filter tail out
	input := make([]float64, a.lead+len(mono)+from)
	copy(input[a.lead:], mono)

	output, err := resampler.Process(input)
	if err != nil {
		return nil, err
	}
	if a.skip >= len(output) {
		return nil, nil
	}
	return output[a.skip:], nil
}

type ratePair struct{ from, to int }

var alignments sync.Map

// alignmentFor measures once per rate pair where the resampler puts a band
// limited pulse and returns the shift bringing it to its nominal position.
func alignmentFor(from, to int) (alignment, error) {
	key := ratePair{from, to}
	if cached, ok := alignments.Load(key); ok {
		return cached.(alignment), nil
	}

	ratio := float64(to) / float64(from)
	sigma := 4 * math.Max(1, 1/ratio)
	center := from / 2
	pulse := make([]float64, from)
	for i := range pulse {
		d := (float64(i) - float64(center)) / sigma
		pulse[i] = 0.5 * math.Exp(-0.5*d*d)
	}

	output, err := alignment{}.apply(pulse, from, to)
	if err != nil {
		return alignment{}, fmt.Errorf("resampler calibration: %w", err)
	}
	if len(output) < 3 {
		return alignment{}, fmt.Errorf("resampler calibration: %d output samples", len(output))
	}

	early := float64(center)*ratio - peak(output)
	var shift alignment
	if early > 0 {
		shift.lead = int(math.Round(early / ratio))
	} else {
		shift.skip = int(math.Round(-early))
	}
	alignments.Store(key, shift)
	return shift, nil
}

// peak returns the fractional index of the maximum of x from a parabola
// through its neighbours
func peak(x []float64) float64 {
	i := floats.MaxIdx(x)
	if i == 0 || i == len(x)-1 {
		return float64(i)
	}
	a, b, c := x[i-1], x[i], x[i+1]
	den := a - 2*b + c
	if den == 0 {
		return float64(i)
	}
	return float64(i) + 0.5*(a-c)/den
}

func clamp(v float64) float64 {
	if v < -pcmScale {
		return -pcmScale
	}
	if v > pcmScale-1 {
		return pcmScale - 1
	}
	return v
}
